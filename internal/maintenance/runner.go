// Package maintenance runs a single cron-scheduled upkeep task for the
// orchestration runtime, such as reloading the tool-server fleet to pick
// up newly configured servers.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is the upkeep work run on every tick.
type Task func(ctx context.Context) error

// Runner ticks Task on the schedule described by a standard cron
// expression until Stop is called.
type Runner struct {
	schedule cron.Schedule
	task     Task
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewRunner parses expr as a standard 5-field cron expression (minute hour
// dom month dow). An empty expr disables the runner: Start becomes a no-op.
func NewRunner(expr string, task Task, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{task: task, logger: logger.With("component", "maintenance"), stop: make(chan struct{}), done: make(chan struct{})}

	expr = strings.TrimSpace(expr)
	if expr == "" {
		return r, nil
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("maintenance: parse cron schedule %q: %w", expr, err)
	}
	r.schedule = schedule
	return r, nil
}

// Start runs the task on every scheduled tick until the context is
// cancelled or Stop is called. It returns immediately if no schedule was
// configured.
func (r *Runner) Start(ctx context.Context) {
	if r.schedule == nil {
		close(r.done)
		return
	}
	go func() {
		defer close(r.done)
		next := r.schedule.Next(time.Now())
		for {
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-r.stop:
				timer.Stop()
				return
			case <-timer.C:
				if err := r.task(ctx); err != nil {
					r.logger.Error("maintenance task failed", "error", err)
				}
				next = r.schedule.Next(time.Now())
			}
		}
	}()
}

// Stop signals the runner to exit and waits for it to finish.
func (r *Runner) Stop() {
	select {
	case <-r.done:
		return
	default:
	}
	close(r.stop)
	<-r.done
}
