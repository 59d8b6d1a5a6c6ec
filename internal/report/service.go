// Package report prunes a study log to its retention window and aggregates
// what remains.
package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/aggregate"
	"github.com/runnerr0/testpilot/internal/config"
	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/storage"
)

// Request overrides configured report settings for one call.
type Request struct {
	Concluded bool
	TopN      int
}

// Result is a report together with the retention pass that preceded it.
type Result struct {
	RunID  string    `json:"run_id"`
	Cutoff time.Time `json:"cutoff"`
	Pruned int64     `json:"pruned"`
	*aggregate.Report
}

// Service answers report requests against one study store.
type Service struct {
	store     storage.Store
	study     event.Study
	retention time.Duration
	concluded bool
	topN      int
	denylist  []aggregate.Pair
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a report service from the loaded configuration.
func NewService(store storage.Store, study event.Study, cfg *config.Config, logger *zap.Logger) *Service {
	denylist := make([]aggregate.Pair, 0, len(cfg.Report.Denylist))
	for _, p := range cfg.Report.Denylist {
		denylist = append(denylist, aggregate.Pair{Item: p.Item, SubItem: p.SubItem})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		study:     study,
		retention: cfg.Retention.Window(),
		concluded: cfg.Study.Concluded,
		topN:      cfg.Report.TopN,
		denylist:  denylist,
		now:       time.Now,
		logger:    logger,
	}
}

// Cutoff returns the oldest timestamp kept by the retention window.
func (s *Service) Cutoff() time.Time {
	return s.now().Add(-s.retention)
}

// Prune deletes events older than the retention window.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	cutoff := s.Cutoff()
	n, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", cutoff.UTC().Format(time.RFC3339), err)
	}
	if n > 0 {
		s.logger.Info("pruned expired events",
			zap.String("study", s.study.String()),
			zap.Int64("deleted", n),
			zap.Time("cutoff", cutoff),
		)
	}
	return n, nil
}

// Generate prunes the store, then aggregates a full scan of it.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	cutoff := s.Cutoff()
	pruned, err := s.Prune(ctx)
	if err != nil {
		return nil, err
	}

	runID, err := s.store.RunID(ctx)
	if err != nil {
		return nil, err
	}

	topN := s.topN
	if req.TopN > 0 {
		topN = req.TopN
	}

	agg := aggregate.New(s.study, aggregate.Options{
		Denylist:  s.denylist,
		TopN:      topN,
		Concluded: s.concluded || req.Concluded,
		Now:       s.now,
		Logger:    s.logger,
	})

	start := time.Now()
	rep, err := agg.Aggregate(s.store.Scan(ctx, time.Time{}))
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", s.study, err)
	}

	s.logger.Debug("report generated",
		zap.String("study", s.study.String()),
		zap.Int("processed", rep.Processed),
		zap.Int("malformed", rep.Malformed),
		zap.Int("unknown", rep.Unknown),
		zap.Duration("duration", time.Since(start)),
	)

	return &Result{RunID: runID, Cutoff: cutoff, Pruned: pruned, Report: rep}, nil
}
