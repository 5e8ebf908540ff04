// Package cache provides a generic key-value store interface with in-memory
// and Redis implementations, TTL expiration and priority-aware eviction.
//
// Both implementations share the same [Cache] interface, making it easy to
// swap backends or use in-memory caching for development and Redis for
// production.
//
// # Interface
//
// The [Cache] interface is generic over value type V:
//
//   - Get(ctx, key) (V, error) — retrieve a value
//   - Set(ctx, key, value, ttl, priority) error — store a value
//   - Delete(ctx, key) error — remove a key
//   - Has(ctx, key) (bool, error) — check existence
//   - Clear(ctx) error — remove all entries
//   - Close() error — release resources
//
// TTL semantics for Set:
//   - Positive duration: item expires after this duration
//   - Zero: use the store's configured default TTL (1 hour by default)
//   - Negative: item never expires
//
// # Eviction Priority
//
// Every entry carries a [Priority] class ([PriorityLow], [PriorityNormal] or
// [PriorityHigh]). When the in-memory store reaches its configured capacity,
// the least recently used entry of the lowest populated class is evicted
// first; high-priority entries (expensive dashboard aggregates, reference
// data) survive until nothing cheaper is left. The Redis backend treats the
// priority as advisory, since Redis applies its own eviction policy.
//
// # In-Memory Store
//
// Use [NewMemory] for single-process deployments or testing:
//
//	c := cache.NewMemory[any](
//	    cache.WithDefaultTTL(5 * time.Minute),
//	    cache.WithCleanupInterval(30 * time.Second),
//	    cache.WithMaxEntries(10000),
//	)
//	defer c.Close()
//
//	c.Set(ctx, "ref_categories", cats, 0, cache.PriorityHigh)
//	val, err := c.Get(ctx, "ref_categories")
//
// # Redis Store
//
// Use [NewRedis] for shared caching with a Redis backend. Pass a custom
// [Marshaler] as the second argument to use a different serialization
// format; if nil, JSON is used.
//
// # Cache Stampede Prevention
//
// Use the standalone [GetOrSet] function to prevent cache stampedes.
// It uses singleflight to ensure only one goroutine computes a missing value:
//
//	val, err := cache.GetOrSet(ctx, c, "dashboard_summary", func(ctx context.Context) (any, time.Duration, cache.Priority, error) {
//	    sum, err := source.InventorySummary(ctx)
//	    return sum, 10 * time.Minute, cache.PriorityHigh, err
//	})
//
// # Error Handling
//
// The package defines sentinel errors checked with [errors.Is]:
//
//   - [ErrNotFound] — key does not exist or has expired
//   - [ErrClosed] — operation on a closed store
//   - [ErrMarshal] / [ErrUnmarshal] — value serialization failed
package cache
