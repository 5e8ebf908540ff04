package warmup

import (
	"time"

	"github.com/stockroomhq/stockroom/pkg/cache"
)

// Option configures the orchestrator.
type Option func(*options)

type options struct {
	referenceTTL   time.Duration
	dashboardTTL   time.Duration
	posTTL         time.Duration
	predictionsTTL time.Duration

	branchLimit       int
	topProductsLimit  int
	lowStockThreshold int
}

func defaultOptions() *options {
	return &options{
		referenceTTL:      12 * time.Hour,
		dashboardTTL:      10 * time.Minute,
		posTTL:            5 * time.Minute,
		predictionsTTL:    time.Hour,
		branchLimit:       5,
		topProductsLimit:  10,
		lowStockThreshold: 10,
	}
}

// WithReferenceTTL sets the TTL for reference data slots
// (categories, suppliers, branches).
// Default: 12 hours.
func WithReferenceTTL(d time.Duration) Option {
	return func(o *options) {
		o.referenceTTL = d
	}
}

// WithDashboardTTL sets the TTL for dashboard aggregate slots.
// Default: 10 minutes.
func WithDashboardTTL(d time.Duration) Option {
	return func(o *options) {
		o.dashboardTTL = d
	}
}

// WithPOSTTL sets the TTL for per-branch point-of-sale slots.
// Default: 5 minutes.
func WithPOSTTL(d time.Duration) Option {
	return func(o *options) {
		o.posTTL = d
	}
}

// WithPredictionsTTL sets the TTL for the ML prediction slot.
// Default: 1 hour.
func WithPredictionsTTL(d time.Duration) Option {
	return func(o *options) {
		o.predictionsTTL = d
	}
}

// WithBranchLimit caps how many branches the point-of-sale domain warms,
// bounding data-source load during startup.
// Default: 5.
func WithBranchLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.branchLimit = n
		}
	}
}

// WithTopProductsLimit sets the size of the dashboard top-sellers list.
// Default: 10.
func WithTopProductsLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.topProductsLimit = n
		}
	}
}

// WithLowStockThreshold sets the on-hand threshold for the low-stock slot.
// Default: 10.
func WithLowStockThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.lowStockThreshold = n
		}
	}
}

// priorities per domain: reference data and dashboard aggregates are
// expensive to recompute and survive eviction longest; per-branch POS
// slots are mid-tier; ML predictions go first under pressure.
const (
	referencePriority   = cache.PriorityHigh
	dashboardPriority   = cache.PriorityHigh
	posPriority         = cache.PriorityNormal
	predictionsPriority = cache.PriorityLow
)
