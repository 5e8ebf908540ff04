// Package server exposes the operational HTTP surface of the cache core:
// liveness/readiness probes, cache and warmup statistics, manual
// invalidation and manual warmup triggering.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stockroomhq/stockroom/internal/cachecore"
	"github.com/stockroomhq/stockroom/internal/warmup"
)

const (
	readinessTimeout = 5 * time.Second

	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// CheckFunc is a named readiness check.
type CheckFunc func(ctx context.Context) error

// Server routes operational endpoints to the cache coordination core.
type Server struct {
	log    *slog.Logger
	inv    *cachecore.Invalidator
	orch   *warmup.Orchestrator
	checks map[string]CheckFunc
}

// New builds the HTTP handler. The checks map feeds /readyz; register the
// database, redis and warmup-readiness probes there at assembly time.
func New(log *slog.Logger, inv *cachecore.Invalidator, orch *warmup.Orchestrator, checks map[string]CheckFunc) http.Handler {
	s := &Server{
		log:    log,
		inv:    inv,
		orch:   orch,
		checks: checks,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/invalidate", s.handleInvalidate)
		r.Get("/warmup/stats", s.handleWarmupStats)
		r.Post("/warmup", s.handleWarmup)
	})

	return r
}

type healthResponse struct {
	Checks map[string]healthCheck `json:"checks,omitempty"`
	Status string                 `json:"status"`
}

type healthCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: statusHealthy})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := healthResponse{
		Status: statusHealthy,
		Checks: make(map[string]healthCheck, len(s.checks)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, check := range s.checks {
		name, check := name, check
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				resp.Status = statusUnhealthy
				resp.Checks[name] = healthCheck{Status: statusUnhealthy, Error: err.Error()}
				return
			}
			resp.Checks[name] = healthCheck{Status: statusHealthy}
		}()
	}
	wg.Wait()

	status := http.StatusOK
	if resp.Status == statusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.inv.Stats())
}

func (s *Server) handleWarmupStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Stats())
}

type invalidateRequest struct {
	Pattern string   `json:"pattern,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Keys    []string `json:"keys,omitempty"`
}

type invalidateResponse struct {
	Error   string `json:"error,omitempty"`
	Removed int    `json:"removed"`
}

// handleInvalidate removes cache entries by exactly one of pattern, tags or
// keys. Sweeps are best-effort: a partial failure still reports how many
// entries were removed.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, invalidateResponse{Error: "invalid JSON body"})
		return
	}

	modes := 0
	if req.Pattern != "" {
		modes++
	}
	if len(req.Tags) > 0 {
		modes++
	}
	if len(req.Keys) > 0 {
		modes++
	}
	if modes != 1 {
		writeJSON(w, http.StatusBadRequest, invalidateResponse{Error: "exactly one of pattern, tags or keys is required"})
		return
	}

	ctx := r.Context()
	var removed int
	var err error
	switch {
	case req.Pattern != "":
		removed, err = s.inv.InvalidateByPattern(ctx, req.Pattern)
	case len(req.Tags) > 0:
		removed, err = s.inv.InvalidateByTags(ctx, req.Tags...)
	default:
		removed, err = s.inv.InvalidateKeys(ctx, req.Keys...)
	}

	if err != nil {
		s.log.ErrorContext(ctx, "cache invalidation incomplete",
			slog.Int("removed", removed),
			slog.Any("error", err),
		)
		writeJSON(w, http.StatusInternalServerError, invalidateResponse{Removed: removed, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, invalidateResponse{Removed: removed})
}

type warmupResponse struct {
	Error string       `json:"error,omitempty"`
	Stats warmup.Stats `json:"stats"`
}

// handleWarmup triggers a full startup warmup synchronously. Concurrent
// triggers (including the scheduled one) coalesce inside the orchestrator.
func (s *Server) handleWarmup(w http.ResponseWriter, r *http.Request) {
	err := s.orch.WarmupStartup(r.Context())
	resp := warmupResponse{Stats: s.orch.Stats()}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
