package warmup_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockroomhq/stockroom/internal/cachecore"
	"github.com/stockroomhq/stockroom/internal/retail"
	"github.com/stockroomhq/stockroom/internal/warmup"
	"github.com/stockroomhq/stockroom/pkg/cache"
	"github.com/stockroomhq/stockroom/pkg/logger"
)

// fakeSource is an in-memory retail.DataSource that counts queries and can
// fail selected methods.
type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	block chan struct{} // if set, queries wait until closed
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

func (f *fakeSource) failMethod(name string, err error) {
	f.mu.Lock()
	f.fail[name] = err
	f.mu.Unlock()
}

func (f *fakeSource) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeSource) record(name string) error {
	f.mu.Lock()
	f.calls[name]++
	err := f.fail[name]
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeSource) Categories(context.Context) ([]retail.Category, error) {
	if err := f.record("Categories"); err != nil {
		return nil, err
	}
	return []retail.Category{{ID: 1, Name: "Beverages", ProductCount: 12}}, nil
}

func (f *fakeSource) ActiveSuppliers(context.Context) ([]retail.Supplier, error) {
	if err := f.record("ActiveSuppliers"); err != nil {
		return nil, err
	}
	return []retail.Supplier{{ID: 1, Name: "Acme Goods", LeadTimeDays: 3}}, nil
}

func (f *fakeSource) Branches(context.Context) ([]retail.Branch, error) {
	if err := f.record("Branches"); err != nil {
		return nil, err
	}
	return []retail.Branch{
		{ID: 1, Name: "Downtown", City: "Lisbon"},
		{ID: 2, Name: "Riverside", City: "Porto"},
	}, nil
}

func (f *fakeSource) InventorySummary(context.Context) (retail.InventorySummary, error) {
	if err := f.record("InventorySummary"); err != nil {
		return retail.InventorySummary{}, err
	}
	return retail.InventorySummary{TotalProducts: 120, TotalStockUnits: 4800}, nil
}

func (f *fakeSource) TopProducts(_ context.Context, limit int) ([]retail.ProductSales, error) {
	if err := f.record("TopProducts"); err != nil {
		return nil, err
	}
	return []retail.ProductSales{{ProductID: 7, Name: "Espresso Beans", UnitsSold: 420}}, nil
}

func (f *fakeSource) LowStock(_ context.Context, threshold int) ([]retail.StockLevel, error) {
	if err := f.record("LowStock"); err != nil {
		return nil, err
	}
	return []retail.StockLevel{{ProductID: 9, Name: "Oat Milk", BranchID: 1, OnHand: 2, ReorderPoint: 10}}, nil
}

func (f *fakeSource) BranchSnapshot(_ context.Context, branchID int64) (retail.BranchSnapshot, error) {
	if err := f.record("BranchSnapshot"); err != nil {
		return retail.BranchSnapshot{}, err
	}
	return retail.BranchSnapshot{BranchID: branchID, OrdersToday: 17, RevenueToday: 1234.56}, nil
}

func (f *fakeSource) StockPredictions(context.Context) ([]retail.StockPrediction, error) {
	if err := f.record("StockPredictions"); err != nil {
		return nil, err
	}
	return []retail.StockPrediction{{ProductID: 9, BranchID: 1, PredictedDemand: 40.5, DaysUntilStockout: 4, GeneratedAt: time.Now()}}, nil
}

var _ retail.DataSource = (*fakeSource)(nil)

// blockingSource stalls the inventory summary query until released,
// recording whether the query's context was cancelled while it waited.
type blockingSource struct {
	*fakeSource
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	ctxErr error
}

func newBlockingSource() *blockingSource {
	return &blockingSource{
		fakeSource: newFakeSource(),
		started:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
}

func (b *blockingSource) InventorySummary(ctx context.Context) (retail.InventorySummary, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}

	select {
	case <-ctx.Done():
		b.mu.Lock()
		b.ctxErr = ctx.Err()
		b.mu.Unlock()
		return retail.InventorySummary{}, ctx.Err()
	case <-b.release:
	}
	return retail.InventorySummary{TotalProducts: 1}, nil
}

func (b *blockingSource) queryErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctxErr
}

func setupOrchestrator(t *testing.T, source retail.DataSource, opts ...warmup.Option) (cache.Cache[any], *cachecore.Registry, *warmup.Orchestrator) {
	t.Helper()

	store := cache.NewMemory[any](cache.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	reg := cachecore.NewRegistry(store)
	orch := warmup.NewOrchestrator(store, reg, source, logger.NewNope(), opts...)
	return store, reg, orch
}

func TestOrchestrator_WarmupDashboard(t *testing.T) {
	t.Parallel()

	t.Run("second call before TTL expiry issues zero queries", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		_, _, orch := setupOrchestrator(t, source)

		ctx := context.Background()
		require.NoError(t, orch.WarmupDashboard(ctx))
		first := source.totalCalls()
		require.Equal(t, 3, first)

		require.NoError(t, orch.WarmupDashboard(ctx))
		require.Equal(t, first, source.totalCalls(), "second call must be a pure cache hit")
	})

	t.Run("failed slot is skipped, others still warm", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		source.failMethod("TopProducts", errors.New("query timeout"))
		store, _, orch := setupOrchestrator(t, source)

		ctx := context.Background()
		err := orch.WarmupDashboard(ctx)
		require.Error(t, err)

		has, _ := store.Has(ctx, warmup.KeyDashboardSummary)
		require.True(t, has)
		has, _ = store.Has(ctx, warmup.KeyDashboardTopProducts)
		require.False(t, has)
		has, _ = store.Has(ctx, warmup.KeyDashboardLowStock)
		require.True(t, has)
	})
}

func TestOrchestrator_WarmupPOS(t *testing.T) {
	t.Parallel()

	t.Run("one slot per branch", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		store, _, orch := setupOrchestrator(t, source)

		ctx := context.Background()
		require.NoError(t, orch.WarmupPOS(ctx))

		has, _ := store.Has(ctx, warmup.KeyPOSBranch(1))
		require.True(t, has)
		has, _ = store.Has(ctx, warmup.KeyPOSBranch(2))
		require.True(t, has)
		require.Equal(t, 2, source.callCount("BranchSnapshot"))
	})

	t.Run("branch fan-out is capped", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		_, _, orch := setupOrchestrator(t, source, warmup.WithBranchLimit(1))

		require.NoError(t, orch.WarmupPOS(context.Background()))
		require.Equal(t, 1, source.callCount("BranchSnapshot"))
	})
}

func TestOrchestrator_WarmupMLPredictions(t *testing.T) {
	t.Parallel()

	t.Run("populates the prediction slot", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		store, _, orch := setupOrchestrator(t, source)

		ctx := context.Background()
		orch.WarmupMLPredictions(ctx)

		has, _ := store.Has(ctx, warmup.KeyStockPredictions)
		require.True(t, has)
	})

	t.Run("never propagates errors", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		source.failMethod("StockPredictions", errors.New("model offline"))
		store, _, orch := setupOrchestrator(t, source)

		ctx := context.Background()
		orch.WarmupMLPredictions(ctx) // must not panic or fail

		has, _ := store.Has(ctx, warmup.KeyStockPredictions)
		require.False(t, has)
	})
}

func TestOrchestrator_WarmupStartup(t *testing.T) {
	t.Parallel()

	t.Run("end to end", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		store, reg, orch := setupOrchestrator(t, source)
		inv := cachecore.NewInvalidator(reg, logger.NewNope())
		defer inv.Close()

		ctx := context.Background()
		require.NoError(t, orch.WarmupStartup(ctx))

		stats := orch.Stats()
		require.Positive(t, stats.EntriesWarmed)
		require.Empty(t, stats.LastError)
		require.Equal(t, uint64(1), stats.Runs)
		require.False(t, stats.LastRunAt.IsZero())

		// At least one tracked key per warmed domain.
		keys := reg.Stats().Keys
		requireAnyPrefix(t, keys, "ref_")
		requireAnyPrefix(t, keys, "dashboard_")
		requireAnyPrefix(t, keys, "pos_branch_")

		// Pattern invalidation removes only the dashboard keys and leaves
		// warmup statistics untouched.
		n, err := inv.InvalidateByPattern(ctx, "dashboard_*")
		require.NoError(t, err)
		require.Equal(t, 3, n)

		for _, k := range reg.Stats().Keys {
			require.False(t, strings.HasPrefix(k, "dashboard_"), "dashboard key %q should be gone", k)
		}
		has, _ := store.Has(ctx, warmup.KeyRefCategories)
		require.True(t, has)

		require.Equal(t, stats, orch.Stats(), "statistics are invalidation-unaware")
	})

	t.Run("failing domain does not roll back completed domains", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		source.failMethod("BranchSnapshot", errors.New("pos database offline"))
		store, _, orch := setupOrchestrator(t, source)

		ctx := context.Background()
		err := orch.WarmupStartup(ctx)
		require.Error(t, err)

		// Reference data and dashboard still populated from the same run.
		for _, key := range []string{
			warmup.KeyRefCategories,
			warmup.KeyRefSuppliers,
			warmup.KeyRefBranches,
			warmup.KeyDashboardSummary,
			warmup.KeyDashboardTopProducts,
			warmup.KeyDashboardLowStock,
		} {
			has, _ := store.Has(ctx, key)
			require.True(t, has, "key %q should be populated", key)
		}

		stats := orch.Stats()
		require.Contains(t, stats.LastError, "pos_branch")
		require.Equal(t, uint64(1), stats.Runs)
	})

	t.Run("statistics accumulate across runs", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		_, _, orch := setupOrchestrator(t, source)

		ctx := context.Background()
		require.NoError(t, orch.WarmupStartup(ctx))
		first := orch.Stats()

		require.NoError(t, orch.WarmupStartup(ctx))
		second := orch.Stats()

		require.Equal(t, uint64(2), second.Runs)
		// All slots already populated: no new entries, counter unchanged.
		require.Equal(t, first.EntriesWarmed, second.EntriesWarmed)
	})

	t.Run("caller cancellation does not abort the shared run", func(t *testing.T) {
		t.Parallel()

		source := newBlockingSource()
		store, _, orch := setupOrchestrator(t, source)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- orch.WarmupStartup(ctx) }()

		select {
		case <-source.started:
		case <-time.After(time.Second):
			t.Fatal("summary query never started")
		}
		cancel()
		close(source.release)

		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("warmup did not finish")
		}

		require.NoError(t, source.queryErr(), "in-flight query must not observe cancellation")
		has, _ := store.Has(context.Background(), warmup.KeyDashboardSummary)
		require.True(t, has)
		require.Empty(t, orch.Stats().LastError)
	})

	t.Run("concurrent invocations coalesce", func(t *testing.T) {
		t.Parallel()

		source := newFakeSource()
		source.block = make(chan struct{})
		_, _, orch := setupOrchestrator(t, source)

		ctx := context.Background()
		var wg sync.WaitGroup
		for n := 0; n < 4; n++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = orch.WarmupStartup(ctx)
			}()
		}

		// Let the single in-flight run finish.
		time.Sleep(20 * time.Millisecond)
		close(source.block)
		wg.Wait()

		require.Equal(t, uint64(1), orch.Stats().Runs)
	})
}

func requireAnyPrefix(t *testing.T, keys []string, prefix string) {
	t.Helper()
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			return
		}
	}
	t.Fatalf("no key with prefix %q in %v", prefix, keys)
}
