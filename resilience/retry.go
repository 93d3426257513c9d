package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retrying executor.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt,
	// so an operation is attempted at most MaxRetries+1 times.
	// Default: 3
	MaxRetries int

	// InitialDelay is the base delay before the first retry.
	// Default: 1 second
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries, jitter included.
	// Default: 30 seconds
	MaxDelay time.Duration

	// JitterFactor is the fraction of the base delay added as random
	// jitter: delay = base + random(0, base*JitterFactor).
	// Default: 0.1
	JitterFactor float64

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors except those marked Permanent.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry implements retry with exponential backoff and jitter.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.JitterFactor <= 0 {
		config.JitterFactor = 0.1
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool {
			return err != nil && !IsPermanent(err)
		}
	}

	return &Retry{config: config}
}

// Execute runs the operation, retrying transient failures with backoff.
// The last error is returned after all attempts are exhausted.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := op(ctx)

		if err == nil {
			return nil
		}

		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt >= r.config.MaxRetries {
			break
		}

		delay := r.Delay(attempt)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		// Wait for delay or context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// Delay returns the jittered backoff delay for the given zero-based
// attempt index: min(base + random(0, base*jitter), max) where
// base = initial * 2^attempt.
func (r *Retry) Delay(attempt int) time.Duration {
	base := time.Duration(float64(r.config.InitialDelay) * math.Pow(2, float64(attempt)))
	if base <= 0 || base > r.config.MaxDelay {
		// Overflow or already past the cap; jitter cannot push it lower.
		return r.config.MaxDelay
	}

	delay := base
	span := int64(float64(base) * r.config.JitterFactor)
	if span > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(span))
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// permanentError marks an error as non-retryable.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps an error so the default RetryIf refuses to retry it.
// Use it for configuration errors that will not heal with time.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether the error was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
