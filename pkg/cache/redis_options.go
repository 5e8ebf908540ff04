package cache

import (
	"io"
	"log/slog"
	"time"
)

// RedisOption configures the Redis store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	log        *slog.Logger
	prefix     string
	defaultTTL time.Duration
}

func defaultRedisOptions() *redisOptions {
	return &redisOptions{
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultTTL: time.Hour,
		prefix:     "",
	}
}

// WithRedisDefaultTTL sets the default expiration for cache entries when
// Set is called with a zero TTL.
// Default: 1 hour.
func WithRedisDefaultTTL(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.defaultTTL = d
	}
}

// WithPrefix sets a key prefix for all cache operations.
// Keys are stored as "{prefix}:{key}". This is useful for namespacing
// when multiple caches share the same Redis instance.
func WithPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithRedisLogger sets the logger for writes. Redis applies its own
// eviction policy, so the eviction priority a write carries is surfaced in
// the debug log rather than enforced by the backend.
func WithRedisLogger(log *slog.Logger) RedisOption {
	return func(o *redisOptions) {
		if log != nil {
			o.log = log
		}
	}
}
