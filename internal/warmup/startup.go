package warmup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StartupTrigger launches the one-shot startup warmup without blocking the
// host. Warmup failure is logged and swallowed: the host must never be
// blocked or failed by it.
type StartupTrigger struct {
	orch  *Orchestrator
	log   *slog.Logger
	delay time.Duration
	once  sync.Once
	ready chan struct{}
}

// NewStartupTrigger creates a trigger that waits delay after Kickoff
// before running the warmup, giving the host a moment to begin serving.
func NewStartupTrigger(orch *Orchestrator, log *slog.Logger, delay time.Duration) *StartupTrigger {
	return &StartupTrigger{
		orch:  orch,
		log:   log,
		delay: delay,
		ready: make(chan struct{}),
	}
}

// Kickoff schedules the startup warmup. Non-blocking and one-shot:
// repeated calls are no-ops. The ctx only interrupts the pre-warmup
// delay; once the warmup itself has started it runs to completion even
// if the host begins shutting down.
func (t *StartupTrigger) Kickoff(ctx context.Context) {
	t.once.Do(func() {
		go t.run(ctx)
	})
}

func (t *StartupTrigger) run(ctx context.Context) {
	defer close(t.ready)

	if err := sleep(ctx, t.delay); err != nil {
		t.log.Info("startup warmup skipped, host shutting down before delay elapsed")
		return
	}

	// The orchestrator detaches the run from this context, so a shutdown
	// arriving after the delay has elapsed does not abort it mid-query.
	if err := t.orch.WarmupStartup(ctx); err != nil {
		t.log.Error("startup cache warmup failed", slog.Any("error", err))
	}
}

// Ready returns a channel closed once the startup warmup attempt has
// finished, successfully or not. Readiness probes can await this instead
// of guessing with a fixed sleep.
func (t *StartupTrigger) Ready() <-chan struct{} {
	return t.ready
}

// ReadyCheck returns a probe closure reporting whether the startup warmup
// attempt has completed. It reports the attempt, not its success: a failed
// warmup still readies the host, which then serves on-demand computation.
func (t *StartupTrigger) ReadyCheck() func(context.Context) error {
	return func(context.Context) error {
		select {
		case <-t.ready:
			return nil
		default:
			return ErrWarmupPending
		}
	}
}

// Shutdown is an idempotent no-op for symmetry with other lifecycle hooks;
// it performs no cache work and does not cancel an in-flight warmup.
func (t *StartupTrigger) Shutdown(context.Context) error {
	return nil
}
