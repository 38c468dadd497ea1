package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRunnerRejectsInvalidExpr(t *testing.T) {
	_, err := NewRunner("not a cron expression", func(context.Context) error { return nil }, nil)
	if err == nil {
		t.Fatalf("expected an error for an invalid cron expression")
	}
}

func TestNewRunnerEmptyExprDisablesRunner(t *testing.T) {
	var calls int32
	r, err := NewRunner("", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	r.Stop()

	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected an empty schedule to never invoke the task")
	}
}

// everyTick fires immediately and on every subsequent check, so a Runner
// wired to it ticks as fast as its goroutine loop allows.
type everyTick struct{}

func (everyTick) Next(t time.Time) time.Time { return t }

func TestRunnerInvokesTaskOnSchedule(t *testing.T) {
	r, err := NewRunner("0 0 1 1 *", func(context.Context) error { return nil }, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	r.schedule = everyTick{}

	var calls int32
	r.task = func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&calls) < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 task invocations, got %d", atomic.LoadInt32(&calls))
		default:
			time.Sleep(time.Millisecond)
		}
	}
	r.Stop()
}

func TestRunnerStopIsIdempotentAfterNoSchedule(t *testing.T) {
	r, err := NewRunner("", func(context.Context) error { return nil }, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	r.Start(context.Background())
	r.Stop()
	r.Stop()
}
