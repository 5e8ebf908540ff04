package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisScanBatch is the COUNT hint for SCAN-based prefix clears.
const redisScanBatch = 100

// Redis is a store backed by Redis, serializing values through the
// configured Marshaler (default: JSON).
//
// Eviction priority is advisory here: Redis evicts per its server-side
// maxmemory policy and offers no per-key preference, so the hint a write
// carries is surfaced in the debug log instead of enforced. Use the
// in-memory store when priority classes must actually order eviction.
type Redis[V any] struct {
	client    redis.UniversalClient
	marshaler Marshaler[V]
	opts      *redisOptions
}

// NewRedis creates a Redis-backed store over an existing client,
// typically obtained from pkg/redis.Open. Passing a nil Marshaler selects
// JSON serialization.
//
// Example:
//
//	client := redis.MustOpen(ctx, os.Getenv("REDIS_URL"))
//	c := cache.NewRedis[DashboardSummary](client, nil,
//	    cache.WithPrefix("stockroom"),
//	    cache.WithRedisDefaultTTL(30 * time.Minute),
//	)
func NewRedis[V any](client redis.UniversalClient, m Marshaler[V], opts ...RedisOption) *Redis[V] {
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}

	if m == nil {
		m = jsonMarshaler[V]{}
	}

	return &Redis[V]{
		client:    client,
		marshaler: m,
		opts:      o,
	}
}

// Get retrieves and unmarshals a value.
// Returns ErrNotFound if the key does not exist or already expired.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, err
	}

	return r.marshaler.Unmarshal(data)
}

// Set marshals and stores a value. TTL semantics: positive expires after
// the duration, zero falls back to the configured default, negative
// persists until deleted (or until Redis itself evicts the key).
func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration, priority Priority) error {
	data, err := r.marshaler.Marshal(value)
	if err != nil {
		return err
	}

	if ttl == 0 {
		ttl = r.opts.defaultTTL
	}

	r.opts.log.DebugContext(ctx, "cache write",
		slog.String("key", key),
		slog.Duration("ttl", ttl),
		slog.String("priority", priority.String()),
	)

	// Redis treats 0 as "no expiration", which carries our negative-TTL
	// semantic.
	return r.client.Set(ctx, r.fullKey(key), data, max(ttl, 0)).Err()
}

// Delete removes a key. Absent keys are not an error.
func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.fullKey(key)).Err()
}

// Has reports whether a key exists and has not expired.
func (r *Redis[V]) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.fullKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes this store's entries. With a prefix configured only the
// prefixed namespace is swept (via SCAN, which does not block the server
// the way KEYS would); without one the whole database is flushed.
func (r *Redis[V]) Clear(ctx context.Context) error {
	if r.opts.prefix == "" {
		return r.client.FlushDB(ctx).Err()
	}

	pattern := r.opts.prefix + ":*"
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, redisScanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if cursor = next; cursor == 0 {
			return nil
		}
	}
}

// Close is a no-op: the client's lifecycle belongs to whoever opened it
// (see pkg/redis.Shutdown).
func (r *Redis[V]) Close() error {
	return nil
}

func (r *Redis[V]) fullKey(key string) string {
	if r.opts.prefix == "" {
		return key
	}
	return r.opts.prefix + ":" + key
}

var _ Cache[any] = (*Redis[any])(nil)
