package cache

import (
	"context"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Cache is the contract for a cache engine. BoundedCache implements it
// infallibly; remote or wrapped engines may fail, which is what the
// resilient wrapper detects and absorbs.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: expired and corrupted entries are misses, never errors.
type Cache interface {
	// Set stores a value with the given TTL. TTL<=0 uses the policy
	// default. Fails with ErrSizeExceeded when the serialized entry is
	// larger than the per-entry limit, leaving the index untouched.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Get retrieves a cached value. Returns (nil, false, nil) on miss,
	// expiry, or a corrupted entry.
	Get(ctx context.Context, key string) (any, bool, error)

	// Has reports whether the key is present and unexpired. It performs
	// lazy expiry cleanup but does not count as an access.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes a cached value. Idempotent; reports whether an
	// entry was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes all entries and resets hit/miss/eviction counters.
	Clear(ctx context.Context) error

	// InvalidatePattern deletes every key matching the regular
	// expression and returns the count removed. A malformed pattern is
	// a configuration error and always propagates.
	InvalidatePattern(ctx context.Context, pattern string) (int, error)

	// Cleanup eagerly sweeps expired entries and returns the count
	// removed. Intended to run on a timer independent of access.
	Cleanup(ctx context.Context) (int, error)

	// Stats returns a snapshot of the engine's counters.
	Stats(ctx context.Context) (Stats, error)

	// Metadata returns entry attributes excluding the value, with the
	// same expiry semantics as Get.
	Metadata(ctx context.Context, key string) (Metadata, bool, error)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
