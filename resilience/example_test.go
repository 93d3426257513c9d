package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hollowlabs/guardrail/resilience"
)

func ExampleNewGuard() {
	g := resilience.NewGuard(resilience.GuardConfig{
		Retry: resilience.RetryConfig{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
		},
		Probe: func(ctx context.Context) error {
			// Simulated reachable resource
			return nil
		},
		DisableRecoveryLoop: true,
	})
	defer g.Close()

	err := g.Do(context.Background(),
		func(ctx context.Context) error {
			// Simulated successful operation
			return nil
		},
		nil,
	)

	if err == nil {
		fmt.Println("Operation succeeded")
	}
	// Output:
	// Operation succeeded
}

func ExampleGuard_Do() {
	g := resilience.NewGuard(resilience.GuardConfig{
		Retry: resilience.RetryConfig{
			MaxRetries:   1,
			InitialDelay: time.Millisecond,
		},
		Probe: func(ctx context.Context) error {
			return errors.New("still unreachable")
		},
		DisableRecoveryLoop: true,
	})
	defer g.Close()

	simulatedErr := errors.New("resource unavailable")
	err := g.Do(context.Background(),
		func(ctx context.Context) error {
			return simulatedErr
		},
		func(ctx context.Context) error {
			fmt.Println("served from fallback")
			return nil
		},
	)

	fmt.Println("error:", err)
	fmt.Println("healthy:", g.Healthy())
	// Output:
	// served from fallback
	// error: <nil>
	// healthy: false
}

func ExampleRetry_Execute() {
	r := resilience.NewRetry(resilience.RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
	})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	fmt.Println("error:", err)
	fmt.Println("attempts:", attempts)
	// Output:
	// error: <nil>
	// attempts: 3
}

func ExamplePermanent() {
	r := resilience.NewRetry(resilience.RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
	})

	attempts := 0
	_ = r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		// Configuration errors will not heal with time.
		return resilience.Permanent(errors.New("bad request"))
	})

	fmt.Println("attempts:", attempts)
	// Output:
	// attempts: 1
}
