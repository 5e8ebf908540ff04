// Package db provides PostgreSQL connection pooling and schema migrations.
//
// [Connect] opens a pgx connection pool with retry and linear backoff,
// verifying connectivity with a ping before returning. [Migrate] applies
// embedded goose migrations against the same pool. [Healthcheck] and
// [Shutdown] return closures for readiness probes and graceful teardown.
package db
