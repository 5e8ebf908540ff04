package warmup

import "time"

// Stats is an immutable snapshot of aggregate warmup telemetry.
//
// The orchestrator publishes a fresh snapshot through an atomic pointer
// swap at the end of every startup warmup run, so readers never observe a
// half-updated record. Counters are cumulative since process start and are
// never reset; invalidation does not touch them.
type Stats struct {
	LastRunAt     time.Time     `json:"last_run_at"`
	LastError     string        `json:"last_error,omitempty"`
	LastDuration  time.Duration `json:"last_duration_ns"`
	Runs          uint64        `json:"runs"`
	EntriesWarmed uint64        `json:"entries_warmed"`
}
