package warmup

import "errors"

var (
	// ErrWarmupPending is returned by readiness checks while the startup
	// warmup attempt has not yet finished.
	ErrWarmupPending = errors.New("warmup: startup warmup not finished")
)
