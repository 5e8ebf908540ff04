// Package cachecore coordinates cache invalidation for the retail backend.
//
// It pairs a tracked-key [Registry] with an [Invalidator] that removes
// entries by glob pattern, tag or explicit key list. Warmers register the
// keys they populate via [Registry.Track]; write paths elsewhere in the
// backend call the invalidator after their writes commit. The contract is
// cooperative: nothing here intercepts writes, and keys set without being
// tracked are invisible to pattern sweeps.
//
// Per-key invalidation is atomic (the key ends up absent from both store
// and registry, or the call fails entirely); pattern and tag sweeps are
// deliberately not atomic across the match set.
package cachecore
