package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrDegraded is returned when the guard is degraded and no fallback
	// is available for the operation.
	ErrDegraded = errors.New("resilience: resource degraded")

	// ErrMaxRetriesExceeded is returned when max retry attempts are exhausted.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrGuardClosed is returned when an operation is attempted on a
	// closed guard.
	ErrGuardClosed = errors.New("resilience: guard closed")
)
