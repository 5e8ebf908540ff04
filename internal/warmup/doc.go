// Package warmup keeps the expensive retail cache slots populated.
//
// Three pieces cooperate around the [Orchestrator]:
//
//   - [StartupTrigger] fires exactly one full warmup shortly after the host
//     starts serving, without blocking or failing host startup.
//   - [Scheduler] re-invokes the dashboard and ML warmers on an interval
//     (or cron schedule) to counteract TTL expiry.
//   - Write paths elsewhere invalidate through internal/cachecore after
//     their commits; nothing in this package invalidates.
//
// All warmers are populate-if-absent, so startup, refresh and manual
// triggers can overlap freely: a slot whose TTL has not expired is skipped,
// an expired one is recomputed, and concurrent computations of the same
// slot are single-flighted. Bounded staleness falls out of the combination:
// at most TTL + refresh interval.
package warmup
