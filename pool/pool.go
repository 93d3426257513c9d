package pool

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Conn is a pooled connection handle. Handles are single-owner: the
// caller that acquired a Conn must release or destroy it exactly once.
type Conn struct {
	// ID uniquely identifies this checkout for logging and debugging.
	ID string

	// DB is the underlying database connection. Nil in fakes.
	DB *sqlx.Conn

	// fallback marks connections served by the degraded-mode direct
	// fallback rather than the wrapped pool.
	fallback bool
}

// Fallback reports whether this connection came from the degraded-mode
// direct fallback.
func (c *Conn) Fallback() bool { return c.fallback }

// Stats describes a pool's connection counters.
type Stats struct {
	// Open is the number of established connections, in use and idle.
	Open int

	// InUse is the number of connections currently checked out.
	InUse int

	// Idle is the number of idle connections.
	Idle int

	// WaitCount is the total number of checkouts that had to wait.
	WaitCount int64

	// WaitDuration is the total time spent waiting for checkouts.
	WaitDuration time.Duration

	// MaxOpen is the configured connection limit.
	MaxOpen int
}

// Pool is the contract for a pooled resource. A concrete pool is
// assumed to exist (database/sql's pooling via sqlx here) and is
// wrapped, not rebuilt.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ownership: the resilient wrapper owns the pool for its lifetime;
//   callers never touch it directly.
type Pool interface {
	// Initialize establishes the pool. Must be called before Acquire.
	Initialize(ctx context.Context) error

	// Acquire checks out a connection, honoring the pool's own
	// acquire timeout through ctx.
	Acquire(ctx context.Context) (*Conn, error)

	// Release returns a connection to the pool.
	Release(conn *Conn) error

	// Destroy discards a connection instead of returning it for reuse.
	Destroy(conn *Conn) error

	// Stats returns the pool's connection counters.
	Stats() Stats

	// HealthCheck acquires a connection, runs a trivial round-trip,
	// and releases it.
	HealthCheck(ctx context.Context) error

	// Drain waits for in-use connections to return, up to ctx's
	// deadline, without tearing the pool down.
	Drain(ctx context.Context) error

	// Clear tears the pool down. Initialize may be called again after.
	Clear() error
}
