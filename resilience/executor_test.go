package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutor_Empty(t *testing.T) {
	e := NewExecutor()

	calls := 0
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecutor_RetryAndTimeout(t *testing.T) {
	e := NewExecutor(
		WithRetry(NewRetry(RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond})),
		WithTimeout(20*time.Millisecond),
	)

	attempts := 0
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			// First attempt hangs and should be cut by its own timeout.
			select {
			case <-time.After(time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (timeout then success)", attempts)
	}
}

func TestExecutor_BulkheadOutermost(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	e := NewExecutor(
		WithBulkhead(b),
		WithRetry(NewRetry(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond})),
	)

	// Hold the only slot; the executor must reject instead of retrying
	// its way in.
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer b.Release()

	attempts := 0
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Execute() error = %v, want ErrBulkheadFull", err)
	}
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0 (bulkhead rejects before retry)", attempts)
	}
}
