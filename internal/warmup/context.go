package warmup

import (
	"context"
	"log/slog"

	"github.com/stockroomhq/stockroom/pkg/logger"
)

type ctxKey int

const runIDKey ctxKey = iota

// withRunID attaches a warmup run identifier to the context.
func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the warmup run identifier, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok
}

// RunIDExtractor returns a logger extractor that annotates every log line
// emitted during a warmup run with its run identifier.
func RunIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := RunIDFromContext(ctx); ok && id != "" {
			return slog.String("warmup_run_id", id), true
		}
		return slog.Attr{}, false
	}
}
