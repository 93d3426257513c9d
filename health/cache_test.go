package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hollowlabs/guardrail/cache"
	"github.com/hollowlabs/guardrail/resilience"
)

// downCache fails every operation.
type downCache struct{}

var errDown = errors.New("cache down")

func (downCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return errDown
}
func (downCache) Get(ctx context.Context, key string) (any, bool, error) {
	return nil, false, errDown
}
func (downCache) Has(ctx context.Context, key string) (bool, error)    { return false, errDown }
func (downCache) Delete(ctx context.Context, key string) (bool, error) { return false, errDown }
func (downCache) Clear(ctx context.Context) error                      { return errDown }
func (downCache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	return 0, errDown
}
func (downCache) Cleanup(ctx context.Context) (int, error) { return 0, errDown }
func (downCache) Stats(ctx context.Context) (cache.Stats, error) {
	return cache.Stats{}, errDown
}
func (downCache) Metadata(ctx context.Context, key string) (cache.Metadata, bool, error) {
	return cache.Metadata{}, false, errDown
}

var _ cache.Cache = downCache{}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond}
}

func TestCacheChecker_Healthy(t *testing.T) {
	engine := cache.NewBoundedCache(cache.Policy{DefaultTTL: time.Minute})
	rc := cache.NewResilientCache(engine, cache.ResilientCacheConfig{
		Retry:               fastRetry(),
		DisableRecoveryLoop: true,
	})
	defer rc.Close()

	checker := NewCacheChecker(rc, CacheCheckerConfig{})
	if checker.Name() != "cache" {
		t.Errorf("Name() = %q, want cache", checker.Name())
	}

	result := checker.Check(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
	if _, ok := result.Details["entries"]; !ok {
		t.Error("Details should include entries")
	}
}

func TestCacheChecker_Degraded(t *testing.T) {
	rc := cache.NewResilientCache(downCache{}, cache.ResilientCacheConfig{
		Retry:               fastRetry(),
		DisableRecoveryLoop: true,
	})
	defer rc.Close()

	// Degrade the guard.
	_, _, _ = rc.Get(context.Background(), "k")

	checker := NewCacheChecker(rc, CacheCheckerConfig{})
	result := checker.Check(context.Background())
	if result.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", result.Status)
	}
}

func TestCacheChecker_BudgetPressure(t *testing.T) {
	engine := cache.NewBoundedCache(cache.Policy{
		DefaultTTL:    time.Minute,
		MaxTotalBytes: 1024,
	})
	rc := cache.NewResilientCache(engine, cache.ResilientCacheConfig{
		Retry:               fastRetry(),
		DisableRecoveryLoop: true,
	})
	defer rc.Close()
	ctx := context.Background()

	// ~600 of 1024 budget bytes used.
	for _, k := range []string{"k1", "k2", "k3"} {
		if err := rc.Set(ctx, k, make([]int, 50), 0); err != nil {
			t.Fatalf("Set(%s) error = %v", k, err)
		}
	}

	checker := NewCacheChecker(rc, CacheCheckerConfig{
		MaxTotalBytes:    1024,
		WarningThreshold: 0.2,
	})

	result := checker.Check(ctx)
	if result.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded under budget pressure", result.Status)
	}
	if _, ok := result.Details["budget_pressure"]; !ok {
		t.Error("Details should include budget_pressure")
	}
}

func TestCacheChecker_CancelledContext(t *testing.T) {
	engine := cache.NewBoundedCache(cache.Policy{DefaultTTL: time.Minute})
	rc := cache.NewResilientCache(engine, cache.ResilientCacheConfig{
		Retry:               fastRetry(),
		DisableRecoveryLoop: true,
	})
	defer rc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checker := NewCacheChecker(rc, CacheCheckerConfig{})
	result := checker.Check(ctx)
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy on cancelled context", result.Status)
	}
}
