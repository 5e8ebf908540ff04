package cachecore

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jellydator/ttlcache/v3"
)

const (
	patternCacheCapacity = 256
	patternCacheTTL      = time.Hour
)

// Invalidator removes tracked cache entries by glob pattern, tag or
// explicit key list.
//
// Sweeps are best-effort, not all-or-nothing: invalidation proceeds
// key-by-key, a failure on one key does not abort the rest of the sweep,
// and tag sweeps additionally isolate failures per tag.
type Invalidator struct {
	registry *Registry
	patterns *ttlcache.Cache[string, *regexp.Regexp]
	log      *slog.Logger
}

// NewInvalidator creates an invalidator over the given registry.
// Compiled glob matchers are kept in a bounded TTL cache so frequent
// write-path invalidations do not recompile the same pattern.
func NewInvalidator(registry *Registry, log *slog.Logger) *Invalidator {
	patterns := ttlcache.New(
		ttlcache.WithTTL[string, *regexp.Regexp](patternCacheTTL),
		ttlcache.WithCapacity[string, *regexp.Regexp](patternCacheCapacity),
	)
	go patterns.Start()

	return &Invalidator{
		registry: registry,
		patterns: patterns,
		log:      log,
	}
}

// Close stops the compiled-pattern cache's expiry loop.
func (i *Invalidator) Close() {
	i.patterns.Stop()
}

// InvalidateByPattern removes every tracked key matching the glob pattern
// and returns the number removed. An empty tracked set yields zero matches,
// never an error. Per-key failures are logged, skipped and aggregated into
// the returned error; remaining matches are still attempted.
func (i *Invalidator) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	re, err := i.compiled(pattern)
	if err != nil {
		return 0, fmt.Errorf("cachecore: invalid pattern %q: %w", pattern, err)
	}

	removed := 0
	var errs *multierror.Error
	for _, key := range i.registry.snapshot() {
		if !re.MatchString(key) {
			continue
		}
		if err := i.registry.Invalidate(ctx, key); err != nil {
			i.log.ErrorContext(ctx, "failed to invalidate cache key",
				slog.String("key", key),
				slog.String("pattern", pattern),
				slog.Any("error", err),
			)
			errs = multierror.Append(errs, fmt.Errorf("key %q: %w", key, err))
			continue
		}
		removed++
	}

	return removed, errs.ErrorOrNil()
}

// InvalidateByTags treats each tag as a substring marker, sweeping the
// pattern `*tag*` per tag. Tags are processed independently and
// sequentially; one tag's failure does not prevent the next from being
// attempted. A key matching several tags is removed at most once, since
// later sweeps no longer see it in the registry.
//
// Empty tags are skipped: `*""*` would match every tracked key, turning a
// malformed request into a full cache flush.
func (i *Invalidator) InvalidateByTags(ctx context.Context, tags ...string) (int, error) {
	total := 0
	var errs *multierror.Error
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		n, err := i.InvalidateByPattern(ctx, "*"+tag+"*")
		total += n
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("tag %q: %w", tag, err))
		}
	}
	return total, errs.ErrorOrNil()
}

// InvalidateKeys removes the given keys explicitly, without pattern
// matching, and returns how many were invalidated without error. The store
// remove is issued even for keys the registry never tracked.
func (i *Invalidator) InvalidateKeys(ctx context.Context, keys ...string) (int, error) {
	removed := 0
	var errs *multierror.Error
	for _, key := range keys {
		if err := i.registry.Invalidate(ctx, key); err != nil {
			i.log.ErrorContext(ctx, "failed to invalidate cache key",
				slog.String("key", key),
				slog.Any("error", err),
			)
			errs = multierror.Append(errs, fmt.Errorf("key %q: %w", key, err))
			continue
		}
		removed++
	}
	return removed, errs.ErrorOrNil()
}

// Stats returns the underlying registry snapshot.
func (i *Invalidator) Stats() Stats {
	return i.registry.Stats()
}

// compiled returns the cached compiled matcher for pattern, compiling and
// caching it on first use.
func (i *Invalidator) compiled(pattern string) (*regexp.Regexp, error) {
	if item := i.patterns.Get(pattern); item != nil {
		return item.Value(), nil
	}

	re, err := compileGlob(pattern)
	if err != nil {
		return nil, err
	}

	i.patterns.Set(pattern, re, ttlcache.DefaultTTL)
	return re, nil
}
