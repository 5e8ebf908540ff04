// Package redis provides Redis connection management with retry logic,
// health checks and graceful shutdown.
//
// Open a client from a redis:// or rediss:// URL:
//
//	client, err := redis.Open(ctx, cfg.RedisURL,
//	    redis.WithPoolSize(20),
//	    redis.WithRetry(5, 3*time.Second),
//	)
//
// Connection attempts use linear backoff and respect context cancellation.
// [Healthcheck] returns a probe closure for readiness endpoints and
// [Shutdown] returns a hook for graceful teardown.
package redis
