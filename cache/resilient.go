package cache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hollowlabs/guardrail/observe"
	"github.com/hollowlabs/guardrail/resilience"
)

// ProbeKey is the reserved key used by health probes. The engine never
// needs a value under it; a probe is a membership check.
const ProbeKey = "guardrail:probe"

// Fetcher retrieves a value directly from the source of truth,
// bypassing the cache. It serves degraded-mode reads.
type Fetcher func(ctx context.Context, key string) (any, error)

// ResilientCacheConfig configures the resilient cache wrapper.
type ResilientCacheConfig struct {
	// Retry configures the retrying executor for healthy-state calls.
	Retry resilience.RetryConfig

	// Fetcher serves Get while degraded and GetOrFetch misses.
	// Optional; without it degraded reads are misses.
	Fetcher Fetcher

	// ProbeTimeout bounds a single health probe. Default: 10 seconds
	ProbeTimeout time.Duration

	// HealthCheckInterval is the recovery loop period. Default: 60 seconds
	HealthCheckInterval time.Duration

	// RecoveryDelay is the minimum time after the last failure before
	// the loop probes. Default: 5 seconds
	RecoveryDelay time.Duration

	// DisableFallback makes degraded operations fail instead of
	// degrading gracefully.
	DisableFallback bool

	// DisableRecoveryLoop turns off background self-healing.
	DisableRecoveryLoop bool

	// Logger, when set, receives state transition logs.
	Logger observe.Logger

	// Instrumentation, when set, records per-operation telemetry.
	Instrumentation *observe.Instrumentation
}

// ResilientCache wraps a cache engine with failure detection, graceful
// degradation, and automatic recovery. With fallback enabled (the
// default) callers never observe errors from a down cache: degraded
// reads go to the Fetcher (or miss), and degraded writes, deletes, and
// sweeps are absorbed as no-ops. With DisableFallback set, every
// degraded operation fails with resilience.ErrDegraded instead.
type ResilientCache struct {
	engine  Cache
	guard   *resilience.Guard
	fetcher Fetcher
	obs     *observe.Instrumentation
}

// NewResilientCache wraps the given engine. The engine is owned by the
// wrapper for its lifetime; callers go through the wrapper only.
func NewResilientCache(engine Cache, config ResilientCacheConfig) *ResilientCache {
	r := &ResilientCache{
		engine:  engine,
		fetcher: config.Fetcher,
		obs:     config.Instrumentation,
	}

	logger := config.Logger

	r.guard = resilience.NewGuard(resilience.GuardConfig{
		Retry: config.Retry,
		Probe: func(ctx context.Context) error {
			_, err := engine.Has(ctx, ProbeKey)
			return err
		},
		ProbeTimeout:        config.ProbeTimeout,
		HealthCheckInterval: config.HealthCheckInterval,
		RecoveryDelay:       config.RecoveryDelay,
		DisableFallback:     config.DisableFallback,
		DisableRecoveryLoop: config.DisableRecoveryLoop,
		OnStateChange: func(healthy bool) {
			if logger == nil {
				return
			}
			if healthy {
				logger.Info(context.Background(), "cache recovered",
					observe.Field{Key: "component", Value: "cache"})
			} else {
				logger.Warn(context.Background(), "cache degraded, serving fallback",
					observe.Field{Key: "component", Value: "cache"})
			}
		},
	})

	return r
}

// classify marks configuration errors permanent so they are neither
// retried nor absorbed into degradation.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrSizeExceeded),
		errors.Is(err, ErrInvalidPattern),
		errors.Is(err, ErrInvalidKey),
		errors.Is(err, ErrKeyTooLong),
		errors.Is(err, ErrNotSerializable):
		return resilience.Permanent(err)
	}
	return err
}

func (r *ResilientCache) run(ctx context.Context, op string, fn func(context.Context) (bool, error)) error {
	if r.obs == nil {
		_, err := fn(ctx)
		return err
	}
	return r.obs.Observe(ctx, observe.OpMeta{Component: "cache", Op: op}, fn)
}

// Set stores a value through the guard. Size and key validation errors
// surface immediately; transient engine failures degrade to a no-op.
func (r *ResilientCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.run(ctx, "set", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				return classify(r.engine.Set(ctx, key, value, ttl))
			},
			func(ctx context.Context) error {
				fallback = true
				return nil // degraded writes are successful no-ops
			},
		)
		return fallback, err
	})
}

// Get reads through the guard. While degraded the Fetcher serves the
// read when configured; otherwise the result is a miss. With fallback
// disabled a degraded read fails with resilience.ErrDegraded instead.
func (r *ResilientCache) Get(ctx context.Context, key string) (any, bool, error) {
	var value any
	var found bool

	err := r.run(ctx, "get", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				v, ok, err := r.engine.Get(ctx, key)
				if err != nil {
					return err
				}
				value, found = v, ok
				return nil
			},
			func(ctx context.Context) error {
				fallback = true
				if r.fetcher == nil {
					return nil
				}
				v, err := r.fetcher(ctx, key)
				if err != nil {
					return nil // fallback failure is a miss, not an error
				}
				value, found = v, true
				return nil
			},
		)
		return fallback, err
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// GetOrFetch is a read-through Get: on a miss it runs the Fetcher and
// back-fills the cache with the given TTL while healthy. Fetcher
// errors surface to the caller.
func (r *ResilientCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration) (any, bool, error) {
	if v, ok, err := r.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	if r.fetcher == nil {
		return nil, false, nil
	}

	v, err := r.fetcher(ctx, key)
	if err != nil {
		return nil, false, err
	}

	_ = r.Set(ctx, key, v, ttl)
	return v, true, nil
}

// Has checks membership through the guard; degraded checks report false.
func (r *ResilientCache) Has(ctx context.Context, key string) (bool, error) {
	var present bool

	err := r.run(ctx, "has", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				ok, err := r.engine.Has(ctx, key)
				if err != nil {
					return err
				}
				present = ok
				return nil
			},
			func(ctx context.Context) error {
				fallback = true
				return nil
			},
		)
		return fallback, err
	})
	if err != nil {
		return false, err
	}
	return present, nil
}

// Delete removes a key through the guard; degraded deletes are
// successful no-ops reporting nothing removed.
func (r *ResilientCache) Delete(ctx context.Context, key string) (bool, error) {
	var removed bool

	err := r.run(ctx, "delete", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				ok, err := r.engine.Delete(ctx, key)
				if err != nil {
					return err
				}
				removed = ok
				return nil
			},
			func(ctx context.Context) error {
				fallback = true
				return nil
			},
		)
		return fallback, err
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Clear empties the engine; degraded clears are no-ops.
func (r *ResilientCache) Clear(ctx context.Context) error {
	return r.run(ctx, "clear", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				return r.engine.Clear(ctx)
			},
			func(ctx context.Context) error {
				fallback = true
				return nil
			},
		)
		return fallback, err
	})
}

// InvalidatePattern deletes matching keys. A malformed pattern is a
// configuration error and propagates even while degraded; transient
// failures degrade to a zero-count no-op.
func (r *ResilientCache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	// Validate eagerly so a bad pattern surfaces even while degraded.
	if _, err := regexp.Compile(pattern); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	var count int
	err := r.run(ctx, "invalidate_pattern", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				n, err := r.engine.InvalidatePattern(ctx, pattern)
				if err != nil {
					return classify(err)
				}
				count = n
				return nil
			},
			func(ctx context.Context) error {
				fallback = true
				return nil
			},
		)
		return fallback, err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Cleanup sweeps expired entries; degraded sweeps report zero.
func (r *ResilientCache) Cleanup(ctx context.Context) (int, error) {
	var count int

	err := r.run(ctx, "cleanup", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				n, err := r.engine.Cleanup(ctx)
				if err != nil {
					return err
				}
				count = n
				return nil
			},
			func(ctx context.Context) error {
				fallback = true
				return nil
			},
		)
		return fallback, err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Stats returns the engine's snapshot, or a zeroed neutral snapshot
// while degraded.
func (r *ResilientCache) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	err := r.run(ctx, "stats", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				s, err := r.engine.Stats(ctx)
				if err != nil {
					return err
				}
				stats = s
				return nil
			},
			func(ctx context.Context) error {
				fallback = true
				stats = Stats{}
				return nil
			},
		)
		return fallback, err
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Metadata returns entry attributes; degraded lookups are misses.
func (r *ResilientCache) Metadata(ctx context.Context, key string) (Metadata, bool, error) {
	var md Metadata
	var found bool

	err := r.run(ctx, "metadata", func(ctx context.Context) (bool, error) {
		fallback := false
		err := r.guard.Do(ctx,
			func(ctx context.Context) error {
				m, ok, err := r.engine.Metadata(ctx, key)
				if err != nil {
					return err
				}
				md, found = m, ok
				return nil
			},
			func(ctx context.Context) error {
				fallback = true
				return nil
			},
		)
		return fallback, err
	})
	if err != nil {
		return Metadata{}, false, err
	}
	return md, found, nil
}

// CheckHealth probes the engine and updates the guard's state.
func (r *ResilientCache) CheckHealth(ctx context.Context) bool {
	return r.guard.CheckHealth(ctx)
}

// FallbackStats returns the guard's health state and counters.
func (r *ResilientCache) FallbackStats() resilience.GuardStats {
	return r.guard.Stats()
}

// Close stops the recovery loop and the engine's sweeper when the
// engine exposes one. Idempotent.
func (r *ResilientCache) Close() {
	r.guard.Close()
	if c, ok := r.engine.(interface{ Close() }); ok {
		c.Close()
	}
}

// Ensure ResilientCache implements Cache
var _ Cache = (*ResilientCache)(nil)
