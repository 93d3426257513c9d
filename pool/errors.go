package pool

import "errors"

// Sentinel errors for pool operations.
var (
	// ErrNotInitialized is returned when the pool is used before
	// Initialize or after Clear.
	ErrNotInitialized = errors.New("pool: not initialized")

	// ErrPoolClosed is returned when the pool has been torn down.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrNoFallback is the terminal acquisition failure: the pool is
	// degraded and no direct-connection fallback is available. There
	// is no safe degraded value for "give me a connection".
	ErrNoFallback = errors.New("pool: degraded and direct fallback unavailable")

	// ErrRecreateDisabled is returned when pool recreation is turned
	// off by configuration.
	ErrRecreateDisabled = errors.New("pool: recreation disabled")

	// ErrNilConn is returned when a nil connection handle is released
	// or destroyed.
	ErrNilConn = errors.New("pool: nil connection")
)
