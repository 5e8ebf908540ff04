// Package logger provides structured logging with context extraction and
// optional Sentry integration.
//
// It extends the standard library's log/slog with automatic context-based
// attribute injection and error reporting. Create a logger with [New] for
// stdout-only JSON logs, or [NewWithSentry] when a Sentry DSN is configured;
// with an empty DSN the latter gracefully falls back to stdout only, so the
// same code path works in development and production.
//
// Context extractors inject request-scoped attributes on every log call:
//
//	runIDExtractor := func(ctx context.Context) (slog.Attr, bool) {
//		if id, ok := ctx.Value(ctxKeyRunID).(string); ok && id != "" {
//			return slog.String("warmup_run_id", id), true
//		}
//		return slog.Attr{}, false
//	}
//
//	log := logger.New(runIDExtractor)
//	log.InfoContext(ctx, "warmup finished", slog.Int("entries", 12))
//
// [NewNope] returns a discard logger for tests and unconfigured defaults.
package logger
