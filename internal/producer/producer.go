// Package producer connects event sources to a study store.
package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/storage"
)

// Emit records one event. Producers must not retain e after Emit returns.
type Emit func(ctx context.Context, e storage.Event) error

// Producer is an event source with an explicit lifecycle. Start must not
// block; the producer calls emit from its own goroutines until Stop.
type Producer interface {
	Start(ctx context.Context, emit Emit) error
	Stop(ctx context.Context) error
}

// Recorder owns a study store and the producers feeding it. Every emit goes
// through one lock so appends never interleave.
type Recorder struct {
	store     storage.Store
	study     event.Study
	producers []Producer
	logger    *zap.Logger

	mu      sync.Mutex
	private bool
	dropped int64
	running []Producer
}

func NewRecorder(store storage.Store, study event.Study, logger *zap.Logger, producers ...Producer) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:     store,
		study:     study,
		producers: producers,
		logger:    logger,
	}
}

// Emit appends e unless private browsing is on. PRIVATE_ON and PRIVATE_OFF
// themselves are always recorded.
func (r *Recorder) Emit(ctx context.Context, e storage.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.study == event.WeekLife {
		switch event.Code(e.Code) {
		case event.CodePrivateOn:
			r.private = true
		case event.CodePrivateOff:
			r.private = false
		default:
			if r.private {
				r.dropped++
				return nil
			}
		}
	}

	if err := r.store.Append(ctx, &e); err != nil {
		r.logger.Error("append failed", zap.Int32("code", e.Code), zap.Error(err))
		return err
	}
	return nil
}

// Private reports whether events are currently being dropped.
func (r *Recorder) Private() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.private
}

// Dropped returns how many events were discarded in private mode.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Start starts every producer in order. If one fails, the ones already
// started are stopped again.
func (r *Recorder) Start(ctx context.Context) error {
	for _, p := range r.producers {
		if err := p.Start(ctx, r.Emit); err != nil {
			stopErr := r.Stop(ctx)
			return errors.Join(fmt.Errorf("start producer %T: %w", p, err), stopErr)
		}
		r.mu.Lock()
		r.running = append(r.running, p)
		r.mu.Unlock()
	}
	r.logger.Info("recorder started",
		zap.String("study", r.study.String()),
		zap.Int("producers", len(r.producers)),
	)
	return nil
}

// Stop stops running producers in reverse start order.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	running := r.running
	r.running = nil
	r.mu.Unlock()

	var errs []error
	for i := len(running) - 1; i >= 0; i-- {
		if err := running[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop producer %T: %w", running[i], err))
		}
	}
	return errors.Join(errs...)
}
