package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the claim cycle on a fixed interval. The cycle is
// awaited inside the tick handler, so ticks never overlap: a cycle that
// outlives the interval simply delays the next one.
type Scheduler struct {
	run      func(ctx context.Context) error
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(run func(ctx context.Context) error, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{run: run, interval: interval, logger: logger}
}

// Run executes one cycle immediately, then one per interval tick.
// It returns nil when ctx is cancelled, or the first error reported by
// a cycle (fatal conditions propagate to the caller, which decides the
// process exit).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	if err := s.run(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return nil
		case <-ticker.C:
			if err := s.run(ctx); err != nil {
				return err
			}
		}
	}
}
