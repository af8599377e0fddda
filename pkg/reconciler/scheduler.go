package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/aquilhq/actionlog/internal/logger"
)

// Scheduler runs reconciliation passes on a fixed interval. An interval
// of zero disables scheduling entirely; the admin endpoint remains the
// only trigger.
type Scheduler struct {
	reconciler *Reconciler
	interval   time.Duration
	window     int

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewScheduler creates a scheduler. windowHours applies to every
// scheduled pass.
func NewScheduler(r *Reconciler, interval time.Duration, windowHours int) *Scheduler {
	return &Scheduler{
		reconciler: r,
		interval:   interval,
		window:     windowHours,
	}
}

// Start launches the background loop. The first pass runs one full
// interval after start, not immediately, so boot is not slowed by a
// store scan.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		logger.Info("Scheduled reconciliation disabled")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	logger.Info("Scheduled reconciliation enabled", "interval", s.interval, "window_hours", s.window)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.reconciler.Run(ctx, Params{WindowHours: s.window}); err != nil {
					logger.Error("Scheduled reconciliation failed", "error", err)
				}
			}
		}
	}()
}

// Stop terminates the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}
