package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// GuardConfig configures a Guard.
type GuardConfig struct {
	// Retry configures the retrying executor used while healthy.
	Retry RetryConfig

	// Probe performs a lightweight check against the wrapped resource.
	// Required.
	Probe func(ctx context.Context) error

	// Recover, when set, is invoked by the background recovery loop
	// instead of Probe (e.g. pool recreation). Optional.
	Recover func(ctx context.Context) error

	// OnRestore is called once after a degraded guard turns healthy
	// again, before OnStateChange. Used to tear down fallback-only
	// side resources. Optional.
	OnRestore func(ctx context.Context)

	// OnStateChange is called when health flips. Optional.
	OnStateChange func(healthy bool)

	// ProbeTimeout bounds a single health probe.
	// Default: 10 seconds
	ProbeTimeout time.Duration

	// HealthCheckInterval is the background recovery loop period.
	// Default: 60 seconds
	HealthCheckInterval time.Duration

	// RecoveryDelay is the minimum time after the last failure before
	// the recovery loop probes. Default: 5 seconds
	RecoveryDelay time.Duration

	// DisableFallback disables the fallback path entirely; degraded
	// operations then fail with ErrDegraded.
	DisableFallback bool

	// DisableRecoveryLoop turns off the background loop; recovery then
	// only happens through explicit CheckHealth calls. Useful in tests.
	DisableRecoveryLoop bool
}

// GuardStats is a snapshot of a guard's health state and counters.
type GuardStats struct {
	Degraded             bool
	TotalOperations      int64
	FallbackOperations   int64
	ConsecutiveFailures  int
	LastFailureAt        time.Time
	LastRecoveryAt       time.Time
	RecoveryAttempts     int64
	SuccessfulRecoveries int64
}

// Guard wraps a volatile resource with failure detection, graceful
// degradation, and automatic recovery.
//
// State machine: Healthy -> (retries exhausted) -> Degraded ->
// (probe or recovery succeeds) -> Healthy. Degraded is sticky: a
// successful fallback operation does not clear it, only a probe does.
type Guard struct {
	config GuardConfig
	exec   *Executor

	mu                   sync.Mutex
	healthy              bool
	consecutiveFailures  int
	lastFailureAt        time.Time
	lastRecoveryAt       time.Time
	totalOperations      int64
	fallbackOperations   int64
	recoveryAttempts     int64
	successfulRecoveries int64

	probes    singleflight.Group
	stop      chan struct{}
	closeOnce sync.Once
}

// NewGuard creates a guard around the given probe and starts its
// background recovery loop unless disabled.
func NewGuard(config GuardConfig) *Guard {
	// Apply defaults
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 10 * time.Second
	}
	if config.HealthCheckInterval <= 0 {
		config.HealthCheckInterval = 60 * time.Second
	}
	if config.RecoveryDelay <= 0 {
		config.RecoveryDelay = 5 * time.Second
	}

	g := &Guard{
		config:  config,
		healthy: true,
		exec:    NewExecutor(WithRetry(NewRetry(config.Retry))),
		stop:    make(chan struct{}),
	}

	if !config.DisableRecoveryLoop {
		go g.recoveryLoop()
	}

	return g
}

// Do executes op through the guard. While healthy, op runs under the
// retrying executor; exhausted retries flip the guard to degraded and
// the call falls back. While degraded, op is skipped entirely.
//
// Permanent errors (and context cancellation) propagate without
// degrading the guard. When fallback is nil or disabled, degraded
// calls return ErrDegraded.
func (g *Guard) Do(ctx context.Context, op, fallback func(context.Context) error) error {
	g.mu.Lock()
	g.totalOperations++
	degraded := !g.healthy
	g.mu.Unlock()

	if degraded {
		return g.doFallback(ctx, fallback)
	}

	err := g.exec.Execute(ctx, op)
	if err == nil {
		return nil
	}
	if IsPermanent(err) || ctx.Err() != nil {
		return err
	}

	g.markFailure()
	return g.doFallback(ctx, fallback)
}

func (g *Guard) doFallback(ctx context.Context, fallback func(context.Context) error) error {
	g.mu.Lock()
	g.fallbackOperations++
	g.mu.Unlock()

	if g.config.DisableFallback || fallback == nil {
		return ErrDegraded
	}
	return fallback(ctx)
}

// Healthy reports whether the guard currently considers the wrapped
// resource healthy.
func (g *Guard) Healthy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.healthy
}

// CheckHealth probes the wrapped resource and updates health state.
// Concurrent calls collapse into a single probe.
func (g *Guard) CheckHealth(ctx context.Context) bool {
	v, _, _ := g.probes.Do("probe", func() (any, error) {
		return g.runProbe(ctx), nil
	})
	ok, _ := v.(bool)
	return ok
}

func (g *Guard) runProbe(ctx context.Context) bool {
	g.mu.Lock()
	if !g.healthy {
		g.recoveryAttempts++
	}
	probe := g.config.Probe
	g.mu.Unlock()

	if probe == nil {
		return g.Healthy()
	}

	if err := ExecuteWithTimeout(ctx, g.config.ProbeTimeout, probe); err != nil {
		g.markFailure()
		return false
	}

	g.markRecovered(ctx)
	return true
}

// markFailure records a failure and flips the guard to degraded.
// Racing failures record state exactly once.
func (g *Guard) markFailure() {
	g.mu.Lock()
	g.lastFailureAt = time.Now()
	g.consecutiveFailures++
	flipped := g.healthy
	g.healthy = false
	onStateChange := g.config.OnStateChange
	g.mu.Unlock()

	if flipped && onStateChange != nil {
		onStateChange(false)
	}
}

func (g *Guard) markRecovered(ctx context.Context) {
	g.mu.Lock()
	restored := !g.healthy
	if restored {
		g.healthy = true
		g.lastRecoveryAt = time.Now()
		g.successfulRecoveries++
	}
	g.consecutiveFailures = 0
	onRestore := g.config.OnRestore
	onStateChange := g.config.OnStateChange
	g.mu.Unlock()

	if restored {
		if onRestore != nil {
			onRestore(ctx)
		}
		if onStateChange != nil {
			onStateChange(true)
		}
	}
}

// recoveryLoop periodically attempts recovery while degraded. It is
// the only path by which the guard self-heals without caller
// intervention.
func (g *Guard) recoveryLoop() {
	ticker := time.NewTicker(g.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.maybeRecover()
		}
	}
}

func (g *Guard) maybeRecover() {
	g.mu.Lock()
	degraded := !g.healthy
	last := g.lastFailureAt
	g.mu.Unlock()

	if !degraded || time.Since(last) < g.config.RecoveryDelay {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.config.ProbeTimeout)
	defer cancel()

	if g.config.Recover != nil {
		_ = g.config.Recover(ctx)
		return
	}
	g.CheckHealth(ctx)
}

// Stats returns a snapshot of the guard's counters.
func (g *Guard) Stats() GuardStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return GuardStats{
		Degraded:             !g.healthy,
		TotalOperations:      g.totalOperations,
		FallbackOperations:   g.fallbackOperations,
		ConsecutiveFailures:  g.consecutiveFailures,
		LastFailureAt:        g.lastFailureAt,
		LastRecoveryAt:       g.lastRecoveryAt,
		RecoveryAttempts:     g.recoveryAttempts,
		SuccessfulRecoveries: g.successfulRecoveries,
	}
}

// Close stops the background recovery loop. Idempotent; in-flight
// operations complete normally but no further probes fire.
func (g *Guard) Close() {
	g.closeOnce.Do(func() {
		close(g.stop)
	})
}
