package scheduler

import (
	"context"
	"time"

	"dn_tracker_backend/platform/logger"
)

// PeriodicJob calls fn once after an initial delay and then on every tick.
type PeriodicJob struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	fn           func(ctx context.Context) error
	log          *logger.Logger
}

func NewPeriodicJob(name string, initialDelay, interval time.Duration, fn func(ctx context.Context) error, log *logger.Logger) *PeriodicJob {
	if interval <= 0 {
		interval = time.Hour
	}
	if initialDelay < 0 {
		initialDelay = 0
	}

	return &PeriodicJob{
		name:         name,
		initialDelay: initialDelay,
		interval:     interval,
		fn:           fn,
		log:          log,
	}
}

// Run blocks until ctx ends. Failed runs are logged and retried on the next tick.
func (j *PeriodicJob) Run(ctx context.Context) {
	if j == nil || j.fn == nil {
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(j.initialDelay):
	}

	j.tick(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *PeriodicJob) tick(ctx context.Context) {
	if err := j.fn(ctx); err != nil && ctx.Err() == nil {
		j.log.Warn("periodic job failed", "job", j.name, "error", err)
	}
}
