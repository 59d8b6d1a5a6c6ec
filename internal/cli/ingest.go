package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/daemon"
	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/producer"
	"github.com/runnerr0/testpilot/internal/report"
)

const shutdownTimeout = 10 * time.Second

// Execute implements the go-flags Commander interface for IngestCommand.
func (c *IngestCommand) Execute(args []string) error {
	s, err := openSession(c.globals, c.store)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.run(ctx, s)
}

// run serves until ctx is done or the daemon stops on its own.
func (c *IngestCommand) run(ctx context.Context, s *session) error {
	daemonCfg := s.cfg.Daemon
	if c.Port > 0 {
		daemonCfg.Port = c.Port
	}

	reports := report.NewService(s.store, s.study, s.cfg, s.logger)
	server := daemon.NewServer(daemonCfg, s.study, s.store, reports, s.logger)

	producers := []producer.Producer{server}
	if (s.cfg.Heartbeat.Enabled || c.Heartbeat) && s.study == event.WeekLife {
		interval := time.Duration(s.cfg.Heartbeat.IntervalSeconds) * time.Second
		producers = append(producers, producer.NewHeartbeat(interval, s.logger))
	}

	rec := producer.NewRecorder(s.store, s.study, s.logger, producers...)
	if err := rec.Start(ctx); err != nil {
		return err
	}

	pruneEvery := time.Duration(s.cfg.Retention.PruneIntervalHours) * time.Hour
	if pruneEvery <= 0 {
		pruneEvery = 24 * time.Hour
	}
	job := report.NewPruneJob(reports, s.logger, pruneEvery)
	jobDone := make(chan struct{})
	go func() {
		defer close(jobDone)
		job.Start(ctx)
	}()

	fmt.Printf("testpilot daemon listening on http://%s (study %s)\n", server.Addr(), s.study)

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	case <-server.Done():
		serveErr = server.Err()
		s.logger.Error("daemon stopped serving", zap.Error(serveErr))
	}

	job.Stop()
	<-jobDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	stopErr := rec.Stop(shutdownCtx)

	fmt.Println("testpilot daemon stopped")
	if dropped := rec.Dropped(); dropped > 0 {
		fmt.Printf("Dropped %d events during private browsing\n", dropped)
	}
	return errors.Join(serveErr, stopErr)
}
