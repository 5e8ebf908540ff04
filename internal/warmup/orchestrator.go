package warmup

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/stockroomhq/stockroom/internal/cachecore"
	"github.com/stockroomhq/stockroom/internal/retail"
	"github.com/stockroomhq/stockroom/pkg/cache"
)

// Orchestrator populates the warmup domains: reference data, dashboard
// aggregates, per-branch point-of-sale snapshots and ML predictions.
//
// Every warmer is populate-if-absent: a slot that already holds a value is
// skipped, so re-invoking a warmer before its TTL expires is a cheap no-op.
// Per-slot computations are single-flighted, and overlapping startup runs
// (a manual API trigger racing the scheduled one) coalesce into a single
// execution.
type Orchestrator struct {
	store    cache.Cache[any]
	registry *cachecore.Registry
	source   retail.DataSource
	log      *slog.Logger
	opts     *options

	stats     atomic.Pointer[Stats]
	slots     singleflight.Group
	startupSF singleflight.Group
}

// NewOrchestrator wires the orchestrator to its collaborators. All
// dependencies are injected once here; nothing is resolved per call.
func NewOrchestrator(store cache.Cache[any], registry *cachecore.Registry, source retail.DataSource, log *slog.Logger, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	orch := &Orchestrator{
		store:    store,
		registry: registry,
		source:   source,
		log:      log,
		opts:     o,
	}
	orch.stats.Store(&Stats{})
	return orch
}

// WarmupStartup runs the reference-data, dashboard and point-of-sale
// domains concurrently and waits for all of them. A failing domain fails
// the join and is recorded in the statistics' last error, but domains that
// completed keep their cache entries. Concurrent invocations share one
// execution.
//
// Statistics (duration, timestamp, run and entries-warmed counters) are
// updated at the end of every invocation, success or not. Since overlapping
// runs coalesce, the snapshot swap has a single writer.
//
// The run is detached from the caller's cancellation. Coalesced runs are
// shared, so tying them to the first caller's lifetime would let one
// disconnecting HTTP client abort a warmup every joiner is waiting on.
// Once started, a run always completes.
func (o *Orchestrator) WarmupStartup(ctx context.Context) error {
	_, err, _ := o.startupSF.Do("startup", func() (any, error) {
		return nil, o.runStartup(context.WithoutCancel(ctx))
	})
	return err
}

func (o *Orchestrator) runStartup(ctx context.Context) error {
	ctx = withRunID(ctx, uuid.NewString())
	start := time.Now()

	o.log.InfoContext(ctx, "cache warmup starting")

	// Plain errgroup, deliberately without a shared cancel: a failing
	// domain must not abort warmers that are already in flight.
	var g errgroup.Group
	var warmed atomic.Int64

	g.Go(func() error {
		n, err := o.warmReferenceData(ctx)
		warmed.Add(n)
		return err
	})
	g.Go(func() error {
		n, err := o.warmDashboard(ctx)
		warmed.Add(n)
		return err
	})
	g.Go(func() error {
		n, err := o.warmPOS(ctx)
		warmed.Add(n)
		return err
	})

	err := g.Wait()
	elapsed := time.Since(start)

	next := *o.stats.Load()
	next.LastRunAt = time.Now()
	next.LastDuration = elapsed
	next.Runs++
	next.EntriesWarmed += uint64(warmed.Load())
	if err != nil {
		next.LastError = err.Error()
	} else {
		next.LastError = ""
	}
	o.stats.Store(&next)

	if err != nil {
		o.log.ErrorContext(ctx, "cache warmup finished with errors",
			slog.Duration("duration", elapsed),
			slog.Int64("entries_warmed", warmed.Load()),
			slog.Any("error", err),
		)
		return err
	}

	o.log.InfoContext(ctx, "cache warmup finished",
		slog.Duration("duration", elapsed),
		slog.Int64("entries_warmed", warmed.Load()),
	)
	return nil
}

// WarmupReferenceData populates the category, supplier and branch slots.
func (o *Orchestrator) WarmupReferenceData(ctx context.Context) error {
	_, err := o.warmReferenceData(ctx)
	return err
}

// WarmupDashboard populates the dashboard aggregate slots.
func (o *Orchestrator) WarmupDashboard(ctx context.Context) error {
	_, err := o.warmDashboard(ctx)
	return err
}

// WarmupPOS populates one slot per branch, capped at the configured
// branch limit.
func (o *Orchestrator) WarmupPOS(ctx context.Context) error {
	_, err := o.warmPOS(ctx)
	return err
}

// WarmupMLPredictions populates the demand forecast slot. Best-effort:
// every error is logged here and never propagated, so this non-critical
// domain can never fail a caller.
func (o *Orchestrator) WarmupMLPredictions(ctx context.Context) {
	if _, err := o.warmPredictions(ctx); err != nil {
		o.log.WarnContext(ctx, "ml prediction warmup failed",
			slog.Any("error", err),
		)
	}
}

// Stats returns the current statistics snapshot.
func (o *Orchestrator) Stats() Stats {
	return *o.stats.Load()
}

func (o *Orchestrator) warmReferenceData(ctx context.Context) (int64, error) {
	slots := []struct {
		key     string
		compute func(context.Context) (any, error)
	}{
		{KeyRefCategories, func(ctx context.Context) (any, error) { return o.source.Categories(ctx) }},
		{KeyRefSuppliers, func(ctx context.Context) (any, error) { return o.source.ActiveSuppliers(ctx) }},
		{KeyRefBranches, func(ctx context.Context) (any, error) { return o.source.Branches(ctx) }},
	}

	var warmed int64
	var errs *multierror.Error
	for _, s := range slots {
		n, err := o.populateSlot(ctx, s.key, o.opts.referenceTTL, referencePriority, s.compute)
		if err != nil {
			o.log.ErrorContext(ctx, "reference data slot failed",
				slog.String("key", s.key),
				slog.Any("error", err),
			)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.key, err))
			continue
		}
		warmed += n
	}
	return warmed, errs.ErrorOrNil()
}

func (o *Orchestrator) warmDashboard(ctx context.Context) (int64, error) {
	slots := []struct {
		key     string
		compute func(context.Context) (any, error)
	}{
		{KeyDashboardSummary, func(ctx context.Context) (any, error) { return o.source.InventorySummary(ctx) }},
		{KeyDashboardTopProducts, func(ctx context.Context) (any, error) {
			return o.source.TopProducts(ctx, o.opts.topProductsLimit)
		}},
		{KeyDashboardLowStock, func(ctx context.Context) (any, error) {
			return o.source.LowStock(ctx, o.opts.lowStockThreshold)
		}},
	}

	var warmed int64
	var errs *multierror.Error
	for _, s := range slots {
		n, err := o.populateSlot(ctx, s.key, o.opts.dashboardTTL, dashboardPriority, s.compute)
		if err != nil {
			o.log.ErrorContext(ctx, "dashboard slot failed",
				slog.String("key", s.key),
				slog.Any("error", err),
			)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.key, err))
			continue
		}
		warmed += n
	}
	return warmed, errs.ErrorOrNil()
}

func (o *Orchestrator) warmPOS(ctx context.Context) (int64, error) {
	branches, err := o.source.Branches(ctx)
	if err != nil {
		o.log.ErrorContext(ctx, "pos warmup failed to list branches",
			slog.Any("error", err),
		)
		return 0, fmt.Errorf("list branches: %w", err)
	}

	if len(branches) > o.opts.branchLimit {
		branches = branches[:o.opts.branchLimit]
	}

	var warmed int64
	var errs *multierror.Error
	for _, b := range branches {
		key := KeyPOSBranch(b.ID)
		n, err := o.populateSlot(ctx, key, o.opts.posTTL, posPriority, func(ctx context.Context) (any, error) {
			return o.source.BranchSnapshot(ctx, b.ID)
		})
		if err != nil {
			o.log.ErrorContext(ctx, "pos slot failed",
				slog.String("key", key),
				slog.Int64("branch_id", b.ID),
				slog.Any("error", err),
			)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		warmed += n
	}
	return warmed, errs.ErrorOrNil()
}

func (o *Orchestrator) warmPredictions(ctx context.Context) (int64, error) {
	n, err := o.populateSlot(ctx, KeyStockPredictions, o.opts.predictionsTTL, predictionsPriority, func(ctx context.Context) (any, error) {
		return o.source.StockPredictions(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", KeyStockPredictions, err)
	}
	return n, nil
}

// populateSlot fills one cache slot if it is absent. Returns how many
// entries were written (0 on a skip). The computation is single-flighted
// per key, so two warmers racing on the same slot issue one query; both
// may still write, which is an idempotent recomputation, not a bug.
func (o *Orchestrator) populateSlot(ctx context.Context, key string, ttl time.Duration, priority cache.Priority, compute func(context.Context) (any, error)) (int64, error) {
	if has, err := o.store.Has(ctx, key); err == nil && has {
		return 0, nil
	}
	// A Has error is treated as absent: recomputing is the safe side.

	v, err, _ := o.slots.Do(key, func() (any, error) {
		return compute(ctx)
	})
	if err != nil {
		return 0, err
	}

	if err := o.store.Set(ctx, key, v, ttl, priority); err != nil {
		return 0, err
	}
	o.registry.Track(key)

	return 1, nil
}
