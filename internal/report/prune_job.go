package report

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PruneJob applies the retention window on a fixed interval.
type PruneJob struct {
	service  *Service
	logger   *zap.Logger
	interval time.Duration
	stopChan chan struct{}
}

func NewPruneJob(service *Service, logger *zap.Logger, interval time.Duration) *PruneJob {
	return &PruneJob{
		service:  service,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs one prune immediately, then one per interval until Stop is
// called or ctx is done. It blocks.
func (j *PruneJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("Prune job started", zap.Duration("interval", j.interval))

	j.runPrune(ctx)

	for {
		select {
		case <-ticker.C:
			j.runPrune(ctx)
		case <-j.stopChan:
			j.logger.Info("Prune job stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Prune job context cancelled")
			return
		}
	}
}

func (j *PruneJob) Stop() {
	close(j.stopChan)
}

func (j *PruneJob) runPrune(ctx context.Context) {
	startTime := time.Now()

	n, err := j.service.Prune(ctx)
	if err != nil {
		j.logger.Error("Prune job failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)),
		)
		return
	}

	j.logger.Debug("Prune job completed",
		zap.Int64("deleted", n),
		zap.Duration("duration", time.Since(startTime)),
	)
}
