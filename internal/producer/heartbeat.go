package producer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/event"
)

// DefaultHeartbeatInterval is the self-ping period.
const DefaultHeartbeatInterval = 5 * time.Minute

// Heartbeat detects suspended or stalled hosts. It pings itself every
// interval; a ping that arrives more than 10% late means the host was not
// running in between, so it records BROWSER_INACTIVE backdated to when the
// missed ping was due, followed by BROWSER_ACTIVATE now.
type Heartbeat struct {
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu       sync.Mutex
	lastPing time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHeartbeat(interval time.Duration, logger *zap.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Heartbeat{interval: interval, now: time.Now, logger: logger}
}

func (h *Heartbeat) Start(ctx context.Context, emit Emit) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return errors.New("heartbeat already started")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.cancel = cancel
	h.done = make(chan struct{})
	h.lastPing = h.now().Round(0)

	go h.loop(runCtx, emit)
	return nil
}

func (h *Heartbeat) loop(ctx context.Context, emit Emit) {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.ping(ctx, emit); err != nil {
				h.logger.Warn("heartbeat emit failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// ping handles one self-ping.
func (h *Heartbeat) ping(ctx context.Context, emit Emit) error {
	h.mu.Lock()
	// Wall clock only: the monotonic clock stops while the machine sleeps.
	now := h.now().Round(0)
	last := h.lastPing
	h.lastPing = now
	h.mu.Unlock()

	if now.Sub(last) <= h.interval+h.interval/10 {
		return nil
	}

	estimatedStop := last.Add(h.interval)
	h.logger.Debug("missed self-ping",
		zap.Time("estimated_stop", estimatedStop),
		zap.Duration("gap", now.Sub(last)),
	)

	inactive := event.Encode(event.Inactive{Reason: event.ReasonMissedPing})
	inactive.Timestamp = estimatedStop
	if err := emit(ctx, inactive); err != nil {
		return err
	}

	activate := event.Encode(event.Activate{Reason: event.ReasonMissedPing})
	activate.Timestamp = now
	return emit(ctx, activate)
}

// Stop halts the ping loop and waits for it to exit or for ctx to end.
func (h *Heartbeat) Stop(ctx context.Context) error {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel = nil
	h.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
