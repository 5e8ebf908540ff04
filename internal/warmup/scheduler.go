package warmup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerOption configures the refresh scheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	initialDelay time.Duration
	interval     time.Duration
	cronExpr     string
}

func defaultSchedulerOptions() *schedulerOptions {
	return &schedulerOptions{
		initialDelay: 30 * time.Second,
		interval:     10 * time.Minute,
	}
}

// WithInitialDelay sets the grace period before the first refresh cycle,
// giving the startup warmup a head start.
// Default: 30 seconds.
func WithInitialDelay(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		o.initialDelay = d
	}
}

// WithRefreshInterval sets the pause between refresh cycles.
// Default: 10 minutes.
func WithRefreshInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		o.interval = d
	}
}

// WithCronSchedule drives refresh cycles from a cron expression
// (standard five-field syntax) instead of a fixed interval.
func WithCronSchedule(expr string) SchedulerOption {
	return func(o *schedulerOptions) {
		o.cronExpr = expr
	}
}

// Scheduler periodically re-invokes the dashboard and ML-prediction
// warmers to counteract TTL expiry. Because the warmers are
// populate-if-absent, a cycle before expiry is a cheap no-op and a cycle
// after expiry recomputes; maximum staleness is therefore bounded by
// TTL + refresh interval.
type Scheduler struct {
	orch     *Orchestrator
	log      *slog.Logger
	opts     *schedulerOptions
	schedule cron.Schedule // nil when using a fixed interval
}

// NewScheduler creates the refresh scheduler. Returns an error if a cron
// schedule was configured and does not parse.
func NewScheduler(orch *Orchestrator, log *slog.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	o := defaultSchedulerOptions()
	for _, opt := range opts {
		opt(o)
	}

	s := &Scheduler{orch: orch, log: log, opts: o}

	if o.cronExpr != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		schedule, err := parser.Parse(o.cronExpr)
		if err != nil {
			return nil, fmt.Errorf("warmup: invalid cron schedule %q: %w", o.cronExpr, err)
		}
		s.schedule = schedule
	}

	return s, nil
}

// Run blocks until ctx is cancelled. Both the initial grace delay and the
// between-cycle sleeps are interruptible, so cancellation exits within one
// polling granularity rather than waiting out a full interval. A cycle
// that is already refreshing runs to completion before the next
// cancellation check.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "cache refresh scheduler started",
		slog.Duration("initial_delay", s.opts.initialDelay),
	)

	if err := sleep(ctx, s.opts.initialDelay); err != nil {
		s.log.InfoContext(ctx, "cache refresh scheduler stopped")
		return nil
	}

	for {
		s.refresh(ctx)

		if err := sleep(ctx, s.nextPause()); err != nil {
			s.log.InfoContext(ctx, "cache refresh scheduler stopped")
			return nil
		}
	}
}

// refresh invokes the dashboard and ML warmers concurrently. Each outcome
// is logged independently: one failing does not block or cancel the other,
// and neither stops the loop.
//
// Warmers run on a detached context: cancellation stops the loop between
// cycles but never aborts a data-source query that is already in flight.
func (s *Scheduler) refresh(ctx context.Context) {
	warmCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.orch.WarmupDashboard(warmCtx); err != nil {
			s.log.WarnContext(warmCtx, "dashboard refresh failed", slog.Any("error", err))
		}
	}()
	go func() {
		defer wg.Done()
		s.orch.WarmupMLPredictions(warmCtx)
	}()
	wg.Wait()
}

func (s *Scheduler) nextPause() time.Duration {
	if s.schedule != nil {
		return time.Until(s.schedule.Next(time.Now()))
	}
	return s.opts.interval
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
