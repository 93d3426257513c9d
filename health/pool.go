package health

import (
	"context"

	"github.com/hollowlabs/guardrail/pool"
)

// PoolChecker reports the health of a guarded connection pool by
// probing it and snapshotting its connection counters.
type PoolChecker struct {
	pool *pool.ResilientPool
}

// NewPoolChecker creates a pool health checker.
func NewPoolChecker(p *pool.ResilientPool) *PoolChecker {
	return &PoolChecker{pool: p}
}

// Name returns the name of this checker.
func (p *PoolChecker) Name() string {
	return "pool"
}

// Check performs the pool health check. Probing goes through the
// guard, so a passing check here also restores a degraded pool.
func (p *PoolChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	guard := p.pool.FallbackStats()
	stats := p.pool.Stats()

	details := map[string]any{
		"open":                 stats.Open,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"max_open":             stats.MaxOpen,
		"fallback_operations":  guard.FallbackOperations,
		"recreate_attempts":    guard.RecreateAttempts,
		"recreate_successes":   guard.RecreateSuccesses,
		"consecutive_failures": guard.ConsecutiveFailures,
	}

	if !p.pool.CheckHealth(ctx) {
		return Degraded("pool degraded, serving direct fallback").WithDetails(details)
	}

	return Healthy("pool healthy").WithDetails(details)
}
