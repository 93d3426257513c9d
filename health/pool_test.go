package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hollowlabs/guardrail/pool"
	"github.com/hollowlabs/guardrail/resilience"
)

// stubPool is a minimal Pool whose health is toggled by a flag.
type stubPool struct {
	down        atomic.Bool
	initialized atomic.Bool
}

var errPoolDown = errors.New("pool down")

func (s *stubPool) Initialize(ctx context.Context) error {
	s.initialized.Store(true)
	return nil
}

func (s *stubPool) Acquire(ctx context.Context) (*pool.Conn, error) {
	if s.down.Load() {
		return nil, errPoolDown
	}
	return &pool.Conn{ID: "stub"}, nil
}

func (s *stubPool) Release(conn *pool.Conn) error { return nil }
func (s *stubPool) Destroy(conn *pool.Conn) error { return nil }

func (s *stubPool) Stats() pool.Stats {
	return pool.Stats{Open: 3, Idle: 2, InUse: 1, MaxOpen: 25}
}

func (s *stubPool) HealthCheck(ctx context.Context) error {
	if s.down.Load() {
		return errPoolDown
	}
	return nil
}

func (s *stubPool) Drain(ctx context.Context) error { return nil }
func (s *stubPool) Clear() error                    { return nil }

var _ pool.Pool = (*stubPool)(nil)

func newStubResilientPool(t *testing.T, stub *stubPool) *pool.ResilientPool {
	t.Helper()
	rp := pool.NewResilientPool(stub, pool.ResilientPoolConfig{
		Retry:                   resilience.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond},
		DisableRecoveryLoop:     true,
		DisableDirectConnection: true,
		DisablePoolRecreate:     true,
	})
	t.Cleanup(func() { _ = rp.Close() })
	return rp
}

func TestPoolChecker_Healthy(t *testing.T) {
	stub := &stubPool{}
	rp := newStubResilientPool(t, stub)

	checker := NewPoolChecker(rp)
	if checker.Name() != "pool" {
		t.Errorf("Name() = %q, want pool", checker.Name())
	}

	result := checker.Check(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
	if result.Details["max_open"] != 25 {
		t.Errorf("max_open = %v, want 25", result.Details["max_open"])
	}
}

func TestPoolChecker_Degraded(t *testing.T) {
	stub := &stubPool{}
	rp := newStubResilientPool(t, stub)

	stub.down.Store(true)

	checker := NewPoolChecker(rp)
	result := checker.Check(context.Background())
	if result.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", result.Status)
	}
}

func TestPoolChecker_ProbeRestoresHealth(t *testing.T) {
	stub := &stubPool{}
	rp := newStubResilientPool(t, stub)
	ctx := context.Background()

	stub.down.Store(true)
	checker := NewPoolChecker(rp)
	if checker.Check(ctx).Status != StatusDegraded {
		t.Fatal("expected degraded while down")
	}

	stub.down.Store(false)
	if checker.Check(ctx).Status != StatusHealthy {
		t.Error("check should restore health once the pool heals")
	}
	if rp.FallbackStats().Degraded {
		t.Error("guard should be healthy after passing check")
	}
}

func TestPoolChecker_CancelledContext(t *testing.T) {
	stub := &stubPool{}
	rp := newStubResilientPool(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewPoolChecker(rp).Check(ctx)
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy on cancelled context", result.Status)
	}
}
