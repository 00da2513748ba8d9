package entitysync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the period of a Scheduler with no Interval.
const DefaultInterval = 10 * time.Second

// Trigger runs one background sync.
type Trigger func(ctx context.Context) error

// Scheduler runs its triggers immediately and then on every tick until the
// context is cancelled. A failing trigger is logged and retried on the next
// tick.
type Scheduler struct {
	Interval time.Duration
	Triggers map[string]Trigger
	Logger   *zap.Logger
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx, log)
		select {
		case <-ctx.Done():
			log.Info("sync scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// Start runs the scheduler in a new goroutine and returns a channel closed
// when it stops.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return done
}

func (s *Scheduler) runOnce(ctx context.Context, log *zap.Logger) {
	for name, trigger := range s.Triggers {
		if ctx.Err() != nil {
			return
		}
		if err := trigger(ctx); err != nil {
			log.Warn("background sync failed", zap.String("trigger", name), zap.Error(err))
		}
	}
}
