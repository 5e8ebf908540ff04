package cachecore

import (
	"context"
	"slices"
	"sync"

	"github.com/stockroomhq/stockroom/pkg/cache"
)

// Registry tracks the set of cache keys that are invalidation-aware.
//
// Membership is a best-effort superset of what is actually live in the
// store: a tracked key may already have expired from the store (expiry is
// not reflected back here), and entries written through paths that bypass
// Track are invisible to pattern sweeps. A stale registry entry only costs
// a wasted remove attempt later.
type Registry struct {
	store cache.Cache[any]
	mu    sync.Mutex
	keys  map[string]struct{}
}

// NewRegistry creates a registry bound to the given store.
func NewRegistry(store cache.Cache[any]) *Registry {
	return &Registry{
		store: store,
		keys:  make(map[string]struct{}),
	}
}

// Track registers a key with the invalidation engine so pattern and tag
// sweeps can discover it. Idempotent; never fails.
func (r *Registry) Track(key string) {
	r.mu.Lock()
	r.keys[key] = struct{}{}
	r.mu.Unlock()
}

// Invalidate removes a key from the store and then from the tracked set.
//
// The store delete is tolerant of an absent key and happens outside the
// registry lock; only the set mutation is serialized. If the store delete
// fails the tracked entry is kept, so the key is either gone from both
// store and registry or the call failed entirely.
func (r *Registry) Invalidate(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, key); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.keys, key)
	r.mu.Unlock()

	return nil
}

// Stats is a point-in-time snapshot of the tracked key set.
type Stats struct {
	Keys        []string `json:"keys"`
	TrackedKeys int      `json:"tracked_keys"`
}

// Stats returns a snapshot of the tracked set. The copy is taken under the
// lock; sorting and everything caller-visible happens after it is released,
// keeping read-heavy stats endpoints off the hot path.
func (r *Registry) Stats() Stats {
	keys := r.snapshot()
	slices.Sort(keys)
	return Stats{Keys: keys, TrackedKeys: len(keys)}
}

// snapshot copies the tracked key set under the lock.
func (r *Registry) snapshot() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.keys))
	for k := range r.keys {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	return keys
}
