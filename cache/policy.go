package cache

import "time"

// Policy configures the bounded cache engine.
type Policy struct {
	// DefaultTTL is the TTL to use when none is specified on Set.
	// If zero, entries without an explicit TTL are rejected as expired
	// immediately, which effectively disables default caching.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// MaxEntryBytes is the largest serialized entry the engine accepts.
	// Default: 1 MiB
	MaxEntryBytes int

	// MaxTotalBytes is the global byte budget. Least-recently-used
	// entries are evicted to stay within it.
	// Default: 64 MiB
	MaxTotalBytes int

	// CleanupInterval is the period of the background expiry sweep.
	// Zero disables the sweeper; Cleanup can still be called manually.
	CleanupInterval time.Duration
}

// DefaultPolicy returns the default cache policy.
// DefaultTTL: 5 minutes, MaxTTL: 1 hour, MaxEntryBytes: 1 MiB,
// MaxTotalBytes: 64 MiB, CleanupInterval: 1 minute.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL:      5 * time.Minute,
		MaxTTL:          1 * time.Hour,
		MaxEntryBytes:   1 << 20,
		MaxTotalBytes:   64 << 20,
		CleanupInterval: time.Minute,
	}
}

// normalize fills unset limits with defaults.
func (p Policy) normalize() Policy {
	if p.MaxEntryBytes <= 0 {
		p.MaxEntryBytes = 1 << 20
	}
	if p.MaxTotalBytes <= 0 {
		p.MaxTotalBytes = 64 << 20
	}
	if p.MaxEntryBytes > p.MaxTotalBytes {
		p.MaxEntryBytes = p.MaxTotalBytes
	}
	return p
}

// EffectiveTTL returns the TTL to use, applying the default and
// clamping to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
