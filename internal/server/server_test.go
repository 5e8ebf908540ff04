package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockroomhq/stockroom/internal/cachecore"
	"github.com/stockroomhq/stockroom/internal/retail"
	"github.com/stockroomhq/stockroom/internal/server"
	"github.com/stockroomhq/stockroom/internal/warmup"
	"github.com/stockroomhq/stockroom/pkg/cache"
	"github.com/stockroomhq/stockroom/pkg/logger"
)

type stubSource struct {
	predictionsErr error
}

func (s *stubSource) Categories(context.Context) ([]retail.Category, error) {
	return []retail.Category{{ID: 1, Name: "Beverages"}}, nil
}

func (s *stubSource) ActiveSuppliers(context.Context) ([]retail.Supplier, error) {
	return []retail.Supplier{{ID: 1, Name: "Acme"}}, nil
}

func (s *stubSource) Branches(context.Context) ([]retail.Branch, error) {
	return []retail.Branch{{ID: 1, Name: "Downtown"}}, nil
}

func (s *stubSource) InventorySummary(context.Context) (retail.InventorySummary, error) {
	return retail.InventorySummary{TotalProducts: 10}, nil
}

func (s *stubSource) TopProducts(context.Context, int) ([]retail.ProductSales, error) {
	return []retail.ProductSales{{ProductID: 1, UnitsSold: 5}}, nil
}

func (s *stubSource) LowStock(context.Context, int) ([]retail.StockLevel, error) {
	return nil, nil
}

func (s *stubSource) BranchSnapshot(_ context.Context, branchID int64) (retail.BranchSnapshot, error) {
	return retail.BranchSnapshot{BranchID: branchID}, nil
}

func (s *stubSource) StockPredictions(context.Context) ([]retail.StockPrediction, error) {
	if s.predictionsErr != nil {
		return nil, s.predictionsErr
	}
	return []retail.StockPrediction{{ProductID: 1}}, nil
}

func newTestServer(t *testing.T, checks map[string]server.CheckFunc) (http.Handler, *cachecore.Registry, cache.Cache[any]) {
	t.Helper()

	log := logger.NewNope()
	store := cache.NewMemory[any]()
	t.Cleanup(func() { _ = store.Close() })

	registry := cachecore.NewRegistry(store)
	inv := cachecore.NewInvalidator(registry, log)
	t.Cleanup(inv.Close)
	orch := warmup.NewOrchestrator(store, registry, &stubSource{}, log)

	return server.New(log, inv, orch, checks), registry, store
}

func TestLiveness(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	t.Run("all checks pass", func(t *testing.T) {
		t.Parallel()

		checks := map[string]server.CheckFunc{
			"postgres": func(context.Context) error { return nil },
			"warmup":   func(context.Context) error { return nil },
		}
		h, _, _ := newTestServer(t, checks)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Status string                       `json:"status"`
			Checks map[string]map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "healthy", resp.Status)
		require.Len(t, resp.Checks, 2)
	})

	t.Run("failing check reports unavailable", func(t *testing.T) {
		t.Parallel()

		checks := map[string]server.CheckFunc{
			"postgres": func(context.Context) error { return nil },
			"warmup":   func(context.Context) error { return errors.New("cache warmup has not completed") },
		}
		h, _, _ := newTestServer(t, checks)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp struct {
			Status string                       `json:"status"`
			Checks map[string]map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "unhealthy", resp.Status)
		require.Equal(t, "unhealthy", resp.Checks["warmup"]["status"])
		require.Contains(t, resp.Checks["warmup"]["error"], "not completed")
		require.Equal(t, "healthy", resp.Checks["postgres"]["status"])
	})
}

func TestCacheStats(t *testing.T) {
	t.Parallel()

	h, registry, store := newTestServer(t, nil)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "dashboard_summary", 1, time.Minute, cache.PriorityHigh))
	registry.Track("dashboard_summary")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var stats cachecore.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.TrackedKeys)
	require.Equal(t, []string{"dashboard_summary"}, stats.Keys)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T, registry *cachecore.Registry, store cache.Cache[any], keys ...string) {
		t.Helper()
		ctx := context.Background()
		for _, key := range keys {
			require.NoError(t, store.Set(ctx, key, "v", time.Minute, cache.PriorityNormal))
			registry.Track(key)
		}
	}

	t.Run("by pattern", func(t *testing.T) {
		t.Parallel()

		h, registry, store := newTestServer(t, nil)
		seed(t, registry, store, "ref_categories", "ref_suppliers", "dashboard_summary")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", strings.NewReader(`{"pattern":"ref_*"}`))
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"removed":2}`, rec.Body.String())

		has, err := store.Has(context.Background(), "dashboard_summary")
		require.NoError(t, err)
		require.True(t, has)
	})

	t.Run("by tags", func(t *testing.T) {
		t.Parallel()

		h, registry, store := newTestServer(t, nil)
		seed(t, registry, store, "pos_branch_1", "pos_branch_2", "ref_branches")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", strings.NewReader(`{"tags":["pos"]}`))
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"removed":2}`, rec.Body.String())
	})

	t.Run("by keys", func(t *testing.T) {
		t.Parallel()

		h, registry, store := newTestServer(t, nil)
		seed(t, registry, store, "ref_categories")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", strings.NewReader(`{"keys":["ref_categories"]}`))
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"removed":1}`, rec.Body.String())

		has, err := store.Has(context.Background(), "ref_categories")
		require.NoError(t, err)
		require.False(t, has)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		t.Parallel()

		h, _, _ := newTestServer(t, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", strings.NewReader(`{`))
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects ambiguous mode", func(t *testing.T) {
		t.Parallel()

		h, _, _ := newTestServer(t, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", strings.NewReader(`{"pattern":"ref_*","keys":["a"]}`))
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		t.Parallel()

		h, _, _ := newTestServer(t, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", strings.NewReader(`{}`))
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWarmup(t *testing.T) {
	t.Parallel()

	h, _, store := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/warmup", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Stats warmup.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint64(1), resp.Stats.Runs)
	require.NotZero(t, resp.Stats.EntriesWarmed)

	has, err := store.Has(context.Background(), warmup.KeyDashboardSummary)
	require.NoError(t, err)
	require.True(t, has)
}

func TestWarmupStats(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/warmup", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/warmup/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats warmup.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, uint64(1), stats.Runs)
	require.Empty(t, stats.LastError)
	require.False(t, stats.LastRunAt.IsZero())
}
