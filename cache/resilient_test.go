package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hollowlabs/guardrail/observe"
	"github.com/hollowlabs/guardrail/resilience"
)

// flakyEngine wraps a BoundedCache and fails every operation while
// down is set.
type flakyEngine struct {
	*BoundedCache
	down      atomic.Bool
	failFirst atomic.Int64

	calls atomic.Int64
}

var errEngineDown = errors.New("engine down")

func newFlakyEngine() *flakyEngine {
	return &flakyEngine{BoundedCache: NewBoundedCache(Policy{
		DefaultTTL:    time.Minute,
		MaxEntryBytes: 1 << 20,
		MaxTotalBytes: 64 << 20,
	})}
}

func (f *flakyEngine) check() error {
	n := f.calls.Add(1)
	if f.down.Load() {
		return errEngineDown
	}
	if n <= f.failFirst.Load() {
		return errEngineDown
	}
	return nil
}

func (f *flakyEngine) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.BoundedCache.Set(ctx, key, value, ttl)
}

func (f *flakyEngine) Get(ctx context.Context, key string) (any, bool, error) {
	if err := f.check(); err != nil {
		return nil, false, err
	}
	return f.BoundedCache.Get(ctx, key)
}

func (f *flakyEngine) Has(ctx context.Context, key string) (bool, error) {
	if err := f.check(); err != nil {
		return false, err
	}
	return f.BoundedCache.Has(ctx, key)
}

func (f *flakyEngine) Delete(ctx context.Context, key string) (bool, error) {
	if err := f.check(); err != nil {
		return false, err
	}
	return f.BoundedCache.Delete(ctx, key)
}

func (f *flakyEngine) Clear(ctx context.Context) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.BoundedCache.Clear(ctx)
}

func (f *flakyEngine) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	return f.BoundedCache.InvalidatePattern(ctx, pattern)
}

func (f *flakyEngine) Cleanup(ctx context.Context) (int, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	return f.BoundedCache.Cleanup(ctx)
}

func (f *flakyEngine) Stats(ctx context.Context) (Stats, error) {
	if err := f.check(); err != nil {
		return Stats{}, err
	}
	return f.BoundedCache.Stats(ctx)
}

func (f *flakyEngine) Metadata(ctx context.Context, key string) (Metadata, bool, error) {
	if err := f.check(); err != nil {
		return Metadata{}, false, err
	}
	return f.BoundedCache.Metadata(ctx, key)
}

var _ Cache = (*flakyEngine)(nil)

func testResilientConfig() ResilientCacheConfig {
	return ResilientCacheConfig{
		Retry: resilience.RetryConfig{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
		},
		ProbeTimeout:        time.Second,
		DisableRecoveryLoop: true,
	}
}

func TestResilientCache_HealthyRoundTrip(t *testing.T) {
	engine := newFlakyEngine()
	rc := NewResilientCache(engine, testResilientConfig())
	defer rc.Close()
	ctx := context.Background()

	if err := rc.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, ok, err := rc.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || v != "v" {
		t.Errorf("Get() = %v, %v, want v, true", v, ok)
	}

	stats := rc.FallbackStats()
	if stats.Degraded {
		t.Error("guard should be healthy")
	}
	if stats.FallbackOperations != 0 {
		t.Errorf("FallbackOperations = %d, want 0", stats.FallbackOperations)
	}
}

func TestResilientCache_RetriesTransientFailure(t *testing.T) {
	engine := newFlakyEngine()
	rc := NewResilientCache(engine, testResilientConfig())
	defer rc.Close()
	ctx := context.Background()

	// The first two attempts fail; the final retry succeeds.
	engine.failFirst.Store(2)

	if err := rc.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if n := engine.calls.Load(); n != 3 {
		t.Errorf("engine calls = %d, want 3", n)
	}
	if rc.FallbackStats().Degraded {
		t.Error("guard should not degrade when a retry succeeds")
	}
}

func TestResilientCache_DegradedGetUsesFetcher(t *testing.T) {
	engine := newFlakyEngine()
	cfg := testResilientConfig()

	var fetched atomic.Int64
	cfg.Fetcher = func(ctx context.Context, key string) (any, error) {
		fetched.Add(1)
		return "from-source", nil
	}

	rc := NewResilientCache(engine, cfg)
	defer rc.Close()
	ctx := context.Background()

	engine.down.Store(true)

	v, ok, err := rc.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || v != "from-source" {
		t.Errorf("Get() = %v, %v, want from-source, true", v, ok)
	}
	if fetched.Load() != 1 {
		t.Errorf("fetcher calls = %d, want 1", fetched.Load())
	}

	stats := rc.FallbackStats()
	if !stats.Degraded {
		t.Error("guard should be degraded")
	}
	if stats.FallbackOperations != 1 {
		t.Errorf("FallbackOperations = %d, want 1", stats.FallbackOperations)
	}
}

func TestResilientCache_DegradedGetWithoutFetcherMisses(t *testing.T) {
	engine := newFlakyEngine()
	rc := NewResilientCache(engine, testResilientConfig())
	defer rc.Close()
	ctx := context.Background()

	engine.down.Store(true)

	v, ok, err := rc.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || v != nil {
		t.Errorf("Get() = %v, %v, want nil, false", v, ok)
	}
}

func TestResilientCache_DegradedWritesAreNoOps(t *testing.T) {
	engine := newFlakyEngine()
	rc := NewResilientCache(engine, testResilientConfig())
	defer rc.Close()
	ctx := context.Background()

	engine.down.Store(true)

	if err := rc.Set(ctx, "k", "v", 0); err != nil {
		t.Errorf("degraded Set() error = %v, want nil", err)
	}
	if removed, err := rc.Delete(ctx, "k"); err != nil || removed {
		t.Errorf("degraded Delete() = %v, %v, want false, nil", removed, err)
	}
	if err := rc.Clear(ctx); err != nil {
		t.Errorf("degraded Clear() error = %v, want nil", err)
	}
	if n, err := rc.Cleanup(ctx); err != nil || n != 0 {
		t.Errorf("degraded Cleanup() = %d, %v, want 0, nil", n, err)
	}
	if n, err := rc.InvalidatePattern(ctx, "^k"); err != nil || n != 0 {
		t.Errorf("degraded InvalidatePattern() = %d, %v, want 0, nil", n, err)
	}
}

func TestResilientCache_DegradedStatsNeutral(t *testing.T) {
	engine := newFlakyEngine()
	rc := NewResilientCache(engine, testResilientConfig())
	defer rc.Close()
	ctx := context.Background()

	_ = rc.Set(ctx, "k", "v", 0)
	engine.down.Store(true)
	_, _, _ = rc.Get(ctx, "k") // degrade

	stats, err := rc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("degraded Stats() = %+v, want zero value", stats)
	}

	if _, ok, _ := rc.Metadata(ctx, "k"); ok {
		t.Error("degraded Metadata() ok = true, want false")
	}
}

func TestResilientCache_ConfigErrorsPropagate(t *testing.T) {
	engine := newFlakyEngine()
	rc := NewResilientCache(engine, testResilientConfig())
	defer rc.Close()
	ctx := context.Background()

	before := engine.calls.Load()
	if err := rc.Set(ctx, "", "v", 0); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Set(empty key) error = %v, want ErrInvalidKey", err)
	}
	// Config errors are permanent: exactly one attempt, no retries.
	if n := engine.calls.Load() - before; n != 1 {
		t.Errorf("engine calls = %d, want 1", n)
	}
	if rc.FallbackStats().Degraded {
		t.Error("config errors must not degrade the guard")
	}
}

func TestResilientCache_InvalidPatternPropagatesWhileDegraded(t *testing.T) {
	engine := newFlakyEngine()
	rc := NewResilientCache(engine, testResilientConfig())
	defer rc.Close()
	ctx := context.Background()

	engine.down.Store(true)
	_, _, _ = rc.Get(ctx, "k") // degrade

	if _, err := rc.InvalidatePattern(ctx, "(unclosed"); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("InvalidatePattern() error = %v, want ErrInvalidPattern", err)
	}
}

func TestResilientCache_GetOrFetch(t *testing.T) {
	engine := newFlakyEngine()
	cfg := testResilientConfig()

	var fetched atomic.Int64
	cfg.Fetcher = func(ctx context.Context, key string) (any, error) {
		fetched.Add(1)
		return "fresh", nil
	}

	rc := NewResilientCache(engine, cfg)
	defer rc.Close()
	ctx := context.Background()

	// Miss: fetches and back-fills.
	v, ok, err := rc.GetOrFetch(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	if !ok || v != "fresh" {
		t.Errorf("GetOrFetch() = %v, %v, want fresh, true", v, ok)
	}
	if fetched.Load() != 1 {
		t.Errorf("fetcher calls = %d, want 1", fetched.Load())
	}

	// Hit: served from cache, no second fetch.
	v, ok, err = rc.GetOrFetch(ctx, "k", time.Minute)
	if err != nil || !ok || v != "fresh" {
		t.Errorf("GetOrFetch() hit = %v, %v, %v", v, ok, err)
	}
	if fetched.Load() != 1 {
		t.Errorf("fetcher calls = %d, want 1 (hit must not fetch)", fetched.Load())
	}
}

func TestResilientCache_GetOrFetchErrorSurfaces(t *testing.T) {
	engine := newFlakyEngine()
	cfg := testResilientConfig()

	fetchErr := errors.New("source unavailable")
	cfg.Fetcher = func(ctx context.Context, key string) (any, error) {
		return nil, fetchErr
	}

	rc := NewResilientCache(engine, cfg)
	defer rc.Close()

	_, _, err := rc.GetOrFetch(context.Background(), "absent", time.Minute)
	if !errors.Is(err, fetchErr) {
		t.Errorf("GetOrFetch() error = %v, want %v", err, fetchErr)
	}
}

func TestResilientCache_Recovery(t *testing.T) {
	engine := newFlakyEngine()
	rc := NewResilientCache(engine, testResilientConfig())
	defer rc.Close()
	ctx := context.Background()

	engine.down.Store(true)
	_, _, _ = rc.Get(ctx, "k")
	if !rc.FallbackStats().Degraded {
		t.Fatal("guard should be degraded")
	}

	// Probe fails while the engine stays down.
	if rc.CheckHealth(ctx) {
		t.Error("CheckHealth() = true while engine down")
	}

	engine.down.Store(false)
	if !rc.CheckHealth(ctx) {
		t.Error("CheckHealth() = false after engine healed")
	}

	stats := rc.FallbackStats()
	if stats.Degraded {
		t.Error("guard should be healthy after recovery")
	}
	if stats.SuccessfulRecoveries != 1 {
		t.Errorf("SuccessfulRecoveries = %d, want 1", stats.SuccessfulRecoveries)
	}

	// Normal service resumes.
	if err := rc.Set(ctx, "k", "v", 0); err != nil {
		t.Errorf("Set() after recovery error = %v", err)
	}
	if v, ok, _ := rc.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("Get() after recovery = %v, %v, want v, true", v, ok)
	}
}

func TestResilientCache_FallbackDisabledFailsEveryOp(t *testing.T) {
	engine := newFlakyEngine()
	config := testResilientConfig()
	config.DisableFallback = true
	rc := NewResilientCache(engine, config)
	defer rc.Close()
	ctx := context.Background()

	engine.down.Store(true)

	// Exhausted retries degrade the guard; with fallback disabled the
	// caller sees the failure instead of a graceful no-op.
	if err := rc.Set(ctx, "k", "v", 0); !errors.Is(err, resilience.ErrDegraded) {
		t.Fatalf("Set() error = %v, want ErrDegraded", err)
	}

	if _, _, err := rc.Get(ctx, "k"); !errors.Is(err, resilience.ErrDegraded) {
		t.Errorf("Get() error = %v, want ErrDegraded", err)
	}
	if _, err := rc.Has(ctx, "k"); !errors.Is(err, resilience.ErrDegraded) {
		t.Errorf("Has() error = %v, want ErrDegraded", err)
	}
	if _, err := rc.Delete(ctx, "k"); !errors.Is(err, resilience.ErrDegraded) {
		t.Errorf("Delete() error = %v, want ErrDegraded", err)
	}
	if err := rc.Clear(ctx); !errors.Is(err, resilience.ErrDegraded) {
		t.Errorf("Clear() error = %v, want ErrDegraded", err)
	}
	if _, err := rc.Cleanup(ctx); !errors.Is(err, resilience.ErrDegraded) {
		t.Errorf("Cleanup() error = %v, want ErrDegraded", err)
	}
	if _, err := rc.InvalidatePattern(ctx, "^k"); !errors.Is(err, resilience.ErrDegraded) {
		t.Errorf("InvalidatePattern() error = %v, want ErrDegraded", err)
	}
	if _, err := rc.Stats(ctx); !errors.Is(err, resilience.ErrDegraded) {
		t.Errorf("Stats() error = %v, want ErrDegraded", err)
	}
	if _, _, err := rc.Metadata(ctx, "k"); !errors.Is(err, resilience.ErrDegraded) {
		t.Errorf("Metadata() error = %v, want ErrDegraded", err)
	}
}

// countingMetrics tallies recorded operations for asserting the
// instrumented path.
type countingMetrics struct {
	ops       atomic.Int64
	errs      atomic.Int64
	fallbacks atomic.Int64
}

func (m *countingMetrics) RecordOperation(_ context.Context, _ observe.OpMeta, _ time.Duration, err error, fallback bool) {
	m.ops.Add(1)
	if err != nil {
		m.errs.Add(1)
	}
	if fallback {
		m.fallbacks.Add(1)
	}
}

func TestResilientCache_InstrumentedOperations(t *testing.T) {
	engine := newFlakyEngine()
	metrics := &countingMetrics{}
	var logBuf bytes.Buffer

	config := testResilientConfig()
	config.Instrumentation = observe.NewInstrumentationWith(nil, metrics)
	config.Logger = observe.NewLoggerWithWriter("info", &logBuf)
	rc := NewResilientCache(engine, config)
	defer rc.Close()
	ctx := context.Background()

	if err := rc.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, _, err := rc.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if metrics.ops.Load() != 2 {
		t.Errorf("recorded ops = %d, want 2", metrics.ops.Load())
	}
	if metrics.fallbacks.Load() != 0 {
		t.Errorf("recorded fallbacks = %d, want 0", metrics.fallbacks.Load())
	}

	// Degrade the engine; the fallback dimension and the state change
	// log both fire.
	engine.down.Store(true)
	if _, _, err := rc.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() while down error = %v", err)
	}

	if metrics.fallbacks.Load() != 1 {
		t.Errorf("recorded fallbacks = %d, want 1", metrics.fallbacks.Load())
	}
	if !strings.Contains(logBuf.String(), "cache degraded") {
		t.Errorf("log output = %q, want degradation entry", logBuf.String())
	}
}
