package warmup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockroomhq/stockroom/internal/warmup"
	"github.com/stockroomhq/stockroom/pkg/logger"
)

func TestScheduler_Run(t *testing.T) {
	t.Parallel()

	t.Run("cancellation interrupts the initial delay", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		_, _, orch := setupOrchestrator(t, source)
		sched, err := warmup.NewScheduler(orch, logger.NewNope(),
			warmup.WithInitialDelay(time.Hour),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = sched.Run(ctx)
			close(done)
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduler did not exit promptly after cancellation")
		}
		require.Zero(t, source.totalCalls(), "no refresh cycle should have run")
	})

	t.Run("refreshes dashboard and predictions each cycle", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		store, _, orch := setupOrchestrator(t, source)
		sched, err := warmup.NewScheduler(orch, logger.NewNope(),
			warmup.WithInitialDelay(time.Millisecond),
			warmup.WithRefreshInterval(5*time.Millisecond),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = sched.Run(ctx) }()

		require.Eventually(t, func() bool {
			has, _ := store.Has(ctx, warmup.KeyDashboardSummary)
			if !has {
				return false
			}
			has, _ = store.Has(ctx, warmup.KeyStockPredictions)
			return has
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("a failing warmer does not stop the loop", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		source.failMethod("InventorySummary", errors.New("reporting db offline"))
		source.failMethod("StockPredictions", errors.New("model offline"))
		_, _, orch := setupOrchestrator(t, source)
		sched, err := warmup.NewScheduler(orch, logger.NewNope(),
			warmup.WithInitialDelay(time.Millisecond),
			warmup.WithRefreshInterval(time.Millisecond),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = sched.Run(ctx) }()

		// Both warmers keep getting retried despite failing every cycle.
		require.Eventually(t, func() bool {
			return source.callCount("InventorySummary") >= 3 &&
				source.callCount("StockPredictions") >= 3
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("cancellation during the interval exits within one polling granularity", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		_, _, orch := setupOrchestrator(t, source)
		sched, err := warmup.NewScheduler(orch, logger.NewNope(),
			warmup.WithInitialDelay(time.Millisecond),
			warmup.WithRefreshInterval(time.Hour),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = sched.Run(ctx)
			close(done)
		}()

		// Let the first cycle run, then cancel mid-interval.
		require.Eventually(t, func() bool {
			return source.callCount("InventorySummary") > 0
		}, time.Second, time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduler waited out the full interval instead of exiting")
		}
	})

	t.Run("shutdown does not cancel a warmer mid-query", func(t *testing.T) {
		t.Parallel()

		source := newBlockingSource()
		store, _, orch := setupOrchestrator(t, source)
		sched, err := warmup.NewScheduler(orch, logger.NewNope(),
			warmup.WithInitialDelay(time.Millisecond),
			warmup.WithRefreshInterval(time.Hour),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = sched.Run(ctx)
			close(done)
		}()

		select {
		case <-source.started:
		case <-time.After(time.Second):
			t.Fatal("summary query never started")
		}
		cancel()
		close(source.release)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduler did not exit after the cycle finished")
		}

		require.NoError(t, source.queryErr(), "in-flight query must not observe cancellation")
		has, _ := store.Has(context.Background(), warmup.KeyDashboardSummary)
		require.True(t, has)
	})

	t.Run("rejects an invalid cron expression", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		_, _, orch := setupOrchestrator(t, source)

		_, err := warmup.NewScheduler(orch, logger.NewNope(),
			warmup.WithCronSchedule("not a cron expr"),
		)
		require.Error(t, err)
	})

	t.Run("accepts a cron schedule", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		_, _, orch := setupOrchestrator(t, source)

		_, err := warmup.NewScheduler(orch, logger.NewNope(),
			warmup.WithCronSchedule("*/5 * * * *"),
		)
		require.NoError(t, err)
	})
}
