package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dn_tracker_backend/platform/logger"
)

func TestPeriodicJobRunsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	job := NewPeriodicJob("test", 0, 10*time.Millisecond, func(context.Context) error {
		if calls.Add(1) == 3 {
			cancel()
		}
		return errors.New("keeps going")
	}, logger.NewDiscard())

	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("periodic job did not stop")
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 calls, got %d", calls.Load())
	}
}

func TestPeriodicJobCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	NewPeriodicJob("test", time.Hour, time.Hour, func(context.Context) error {
		called = true
		return nil
	}, logger.NewDiscard()).Run(ctx)

	if called {
		t.Fatal("expected no call after cancellation")
	}
}
