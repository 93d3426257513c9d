package health

import (
	"context"
	"fmt"

	"github.com/hollowlabs/guardrail/cache"
)

// CacheCheckerConfig configures the cache health checker.
type CacheCheckerConfig struct {
	// WarningThreshold is the fraction of the byte budget at which the
	// cache reports degraded. Value should be between 0 and 1.
	// Default: 0.9 (90%)
	WarningThreshold float64

	// MaxTotalBytes is the cache's configured byte budget, used to
	// compute pressure. Zero disables the budget check.
	MaxTotalBytes int64
}

// CacheChecker reports the health of a guarded cache: whether its guard
// is degraded, and how close the engine sits to its byte budget.
type CacheChecker struct {
	cache  *cache.ResilientCache
	config CacheCheckerConfig
}

// NewCacheChecker creates a cache health checker.
func NewCacheChecker(c *cache.ResilientCache, config CacheCheckerConfig) *CacheChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.9
	}
	return &CacheChecker{cache: c, config: config}
}

// Name returns the name of this checker.
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check performs the cache health check.
func (c *CacheChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	guard := c.cache.FallbackStats()
	stats, _ := c.cache.Stats(ctx)

	details := map[string]any{
		"entries":               stats.Entries,
		"bytes":                 stats.Bytes,
		"hits":                  stats.Hits,
		"misses":                stats.Misses,
		"evictions":             stats.Evictions,
		"hit_rate":              stats.HitRate(),
		"fallback_operations":   guard.FallbackOperations,
		"consecutive_failures":  guard.ConsecutiveFailures,
		"successful_recoveries": guard.SuccessfulRecoveries,
	}

	if guard.Degraded {
		return Degraded("cache degraded, serving fallback").WithDetails(details)
	}

	if c.config.MaxTotalBytes > 0 {
		pressure := float64(stats.Bytes) / float64(c.config.MaxTotalBytes)
		details["byte_budget"] = c.config.MaxTotalBytes
		details["budget_pressure"] = pressure

		if pressure >= c.config.WarningThreshold {
			return Degraded(
				fmt.Sprintf("cache byte budget pressure high: %.1f%%", pressure*100),
			).WithDetails(details)
		}
	}

	return Healthy("cache healthy").WithDetails(details)
}
