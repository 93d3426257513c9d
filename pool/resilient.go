package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hollowlabs/guardrail/observe"
	"github.com/hollowlabs/guardrail/resilience"
)

// ResilientPoolConfig configures the resilient pool wrapper.
type ResilientPoolConfig struct {
	// Retry configures the retrying executor for healthy-state calls.
	Retry resilience.RetryConfig

	// Driver and DSN are used by the degraded-mode direct fallback to
	// open its single ad-hoc connection. They normally match the
	// wrapped pool's settings.
	Driver string
	DSN    string

	// ProbeTimeout bounds a single health probe. Default: 10 seconds
	ProbeTimeout time.Duration

	// HealthCheckInterval is the recovery loop period. Default: 60 seconds
	HealthCheckInterval time.Duration

	// RecoveryDelay is the minimum time after the last failure before
	// the loop attempts recovery. Default: 5 seconds
	RecoveryDelay time.Duration

	// FallbackMaxWait bounds how long a degraded acquisition waits for
	// the single fallback connection slot. Default: 5 seconds
	FallbackMaxWait time.Duration

	// DisableDirectConnection turns off the degraded-mode fallback;
	// degraded acquisitions then fail with ErrNoFallback.
	DisableDirectConnection bool

	// DisablePoolRecreate stops the recovery loop from tearing down and
	// rebuilding the pool; recovery then relies on probes alone.
	DisablePoolRecreate bool

	// DisableRecoveryLoop turns off background self-healing.
	DisableRecoveryLoop bool

	// Logger, when set, receives state transition logs.
	Logger observe.Logger

	// Instrumentation, when set, records per-operation telemetry.
	Instrumentation *observe.Instrumentation
}

// FallbackStats extends the guard's counters with pool-recreation
// accounting.
type FallbackStats struct {
	resilience.GuardStats

	RecreateAttempts  int64
	RecreateSuccesses int64
}

// ResilientPool wraps a Pool with failure detection, graceful
// degradation, and automatic recovery. While degraded, acquisitions are
// served by a single serialized direct connection; recovery recreates
// the wrapped pool and tears the fallback down.
//
// Unlike the cache, a pool has no safe neutral fallback for every
// operation: when the direct connection is disabled or unavailable,
// degraded acquisitions fail with ErrNoFallback and the caller must
// handle it.
type ResilientPool struct {
	pool   Pool
	guard  *resilience.Guard
	direct *directFallback
	obs    *observe.Instrumentation
	logger observe.Logger

	disableRecreate bool

	mu                sync.Mutex
	closed            bool
	recreateAttempts  int64
	recreateSuccesses int64
}

// NewResilientPool wraps the given pool. The pool is owned by the
// wrapper for its lifetime; callers go through the wrapper only.
func NewResilientPool(inner Pool, config ResilientPoolConfig) *ResilientPool {
	if config.Driver == "" {
		config.Driver = "postgres"
	}
	if config.FallbackMaxWait <= 0 {
		config.FallbackMaxWait = 5 * time.Second
	}
	probeTimeout := config.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}

	r := &ResilientPool{
		pool:            inner,
		obs:             config.Instrumentation,
		logger:          config.Logger,
		disableRecreate: config.DisablePoolRecreate,
	}

	if !config.DisableDirectConnection {
		r.direct = newDirectFallback(config.Driver, config.DSN, config.FallbackMaxWait, probeTimeout)
	}

	logger := config.Logger

	guardConfig := resilience.GuardConfig{
		Retry:               config.Retry,
		Probe:               inner.HealthCheck,
		ProbeTimeout:        config.ProbeTimeout,
		HealthCheckInterval: config.HealthCheckInterval,
		RecoveryDelay:       config.RecoveryDelay,
		DisableRecoveryLoop: config.DisableRecoveryLoop,
		OnRestore: func(ctx context.Context) {
			if r.direct != nil {
				_ = r.direct.close()
			}
		},
		OnStateChange: func(healthy bool) {
			if logger == nil {
				return
			}
			if healthy {
				logger.Info(context.Background(), "pool recovered",
					observe.Field{Key: "component", Value: "pool"})
			} else {
				logger.Warn(context.Background(), "pool degraded, serving direct fallback",
					observe.Field{Key: "component", Value: "pool"})
			}
		},
	}
	if !config.DisablePoolRecreate {
		guardConfig.Recover = func(ctx context.Context) error {
			if r.RecreatePool(ctx) {
				return nil
			}
			return errors.New("pool: recreation failed")
		}
	}

	r.guard = resilience.NewGuard(guardConfig)

	return r
}

func (r *ResilientPool) run(ctx context.Context, op string, fn func(context.Context) (bool, error)) error {
	if r.obs == nil {
		_, err := fn(ctx)
		return err
	}
	return r.obs.Observe(ctx, observe.OpMeta{Component: "pool", Op: op}, fn)
}

// Initialize establishes the wrapped pool.
func (r *ResilientPool) Initialize(ctx context.Context) error {
	return r.pool.Initialize(ctx)
}

// Acquire checks out a connection through the guard. While degraded the
// single direct fallback connection serves the call; when that is
// disabled or fails, Acquire returns ErrNoFallback.
func (r *ResilientPool) Acquire(ctx context.Context) (*Conn, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrPoolClosed
	}
	r.mu.Unlock()

	var conn *Conn

	err := r.run(ctx, "acquire", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				c, err := r.pool.Acquire(ctx)
				if err != nil {
					return err
				}
				conn = c
				return nil
			},
			func(ctx context.Context) error {
				fallback = true
				if r.direct == nil {
					return ErrNoFallback
				}
				c, err := r.direct.acquire(ctx)
				if err != nil {
					return errors.Join(ErrNoFallback, err)
				}
				conn = c
				return nil
			},
		)
		return fallback, err
	})
	if err != nil {
		if errors.Is(err, resilience.ErrDegraded) {
			err = ErrNoFallback
		}
		return nil, err
	}
	return conn, nil
}

// Release returns a connection to wherever it came from: pool
// connections go back to the pool, fallback connections free the single
// direct slot.
func (r *ResilientPool) Release(conn *Conn) error {
	if conn == nil {
		return ErrNilConn
	}
	if conn.Fallback() {
		if r.direct == nil {
			return ErrNilConn
		}
		return r.direct.release(conn)
	}
	return r.pool.Release(conn)
}

// Destroy discards a connection. Fallback connections are never reused,
// so destroy and release coincide for them.
func (r *ResilientPool) Destroy(conn *Conn) error {
	if conn == nil {
		return ErrNilConn
	}
	if conn.Fallback() {
		if r.direct == nil {
			return ErrNilConn
		}
		return r.direct.release(conn)
	}
	return r.pool.Destroy(conn)
}

// Stats returns the wrapped pool's connection counters.
func (r *ResilientPool) Stats() Stats {
	return r.pool.Stats()
}

// HealthCheck probes the wrapped pool and updates the guard's state.
func (r *ResilientPool) HealthCheck(ctx context.Context) error {
	if r.guard.CheckHealth(ctx) {
		return nil
	}
	return resilience.ErrDegraded
}

// Drain waits for in-use pool connections to return.
func (r *ResilientPool) Drain(ctx context.Context) error {
	return r.pool.Drain(ctx)
}

// Clear tears the wrapped pool down.
func (r *ResilientPool) Clear() error {
	return r.pool.Clear()
}

// RecreatePool tears the wrapped pool down and rebuilds it, then
// re-probes. Reports whether the pool is healthy after the attempt.
// When recreation is disabled it returns false without side effects.
func (r *ResilientPool) RecreatePool(ctx context.Context) bool {
	if r.disableRecreate {
		if r.logger != nil {
			r.logger.Debug(ctx, "pool recreation skipped",
				observe.Field{Key: "component", Value: "pool"},
				observe.Field{Key: "reason", Value: ErrRecreateDisabled.Error()})
		}
		return false
	}

	r.mu.Lock()
	r.recreateAttempts++
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info(ctx, "recreating pool",
			observe.Field{Key: "component", Value: "pool"})
	}

	if err := r.pool.Clear(); err != nil {
		return false
	}
	if err := r.pool.Initialize(ctx); err != nil {
		return false
	}
	if !r.guard.CheckHealth(ctx) {
		return false
	}

	r.mu.Lock()
	r.recreateSuccesses++
	r.mu.Unlock()
	return true
}

// CheckHealth probes the wrapped pool and updates the guard's state.
func (r *ResilientPool) CheckHealth(ctx context.Context) bool {
	return r.guard.CheckHealth(ctx)
}

// FallbackStats returns the guard's health counters plus recreation
// accounting.
func (r *ResilientPool) FallbackStats() FallbackStats {
	r.mu.Lock()
	attempts := r.recreateAttempts
	successes := r.recreateSuccesses
	r.mu.Unlock()

	return FallbackStats{
		GuardStats:        r.guard.Stats(),
		RecreateAttempts:  attempts,
		RecreateSuccesses: successes,
	}
}

// Close stops the recovery loop, tears down the direct fallback, and
// clears the wrapped pool. Idempotent.
func (r *ResilientPool) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.guard.Close()
	if r.direct != nil {
		_ = r.direct.close()
	}
	return r.pool.Clear()
}

// Ensure ResilientPool implements Pool
var _ Pool = (*ResilientPool)(nil)
