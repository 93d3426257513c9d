// Package resilience protects volatile shared resources from failure.
//
// The central type is the Guard: a controller that executes operations
// against a wrapped resource with retries and exponential backoff,
// tracks a binary health state, serves a fallback path while the
// resource is degraded, and runs a background recovery loop that
// periodically re-probes the resource until it proves healthy again.
//
// # Patterns
//
//   - Guard: failure detection, graceful degradation, and automatic
//     recovery around any resource that can be probed.
//
//   - Retry: automatic retries with exponential backoff and jitter.
//
//   - Bulkhead: limits concurrent operations; a bulkhead of one
//     serializes access to a single-use fallback resource.
//
//   - Timeout: ensures operations (notably health probes) complete
//     within a time limit.
//
// # Usage
//
//	guard := resilience.NewGuard(resilience.GuardConfig{
//	    Retry: resilience.RetryConfig{
//	        MaxRetries:   3,
//	        InitialDelay: time.Second,
//	        MaxDelay:     30 * time.Second,
//	        JitterFactor: 0.1,
//	    },
//	    Probe: func(ctx context.Context) error {
//	        return resource.Ping(ctx)
//	    },
//	    HealthCheckInterval: time.Minute,
//	    RecoveryDelay:       5 * time.Second,
//	})
//	defer guard.Close()
//
//	err := guard.Do(ctx,
//	    func(ctx context.Context) error { return resource.Write(ctx, v) },
//	    func(ctx context.Context) error { return nil }, // degrade to no-op
//	)
//
// While healthy, operations run through the retrying executor. Once
// retries are exhausted the guard flips to degraded, serves fallbacks,
// and self-heals through the recovery loop.
package resilience
