package observe

import "errors"

// Sentinel errors for observability operations.
var (
	// ErrInvalidConfig indicates the observer configuration is invalid.
	ErrInvalidConfig = errors.New("observe: invalid configuration")

	// ErrShutdownTimeout indicates telemetry shutdown exceeded its deadline.
	ErrShutdownTimeout = errors.New("observe: shutdown timed out")
)
