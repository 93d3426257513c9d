package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"
)

// BoundedCache is an in-memory cache with per-entry TTL and a global
// byte budget enforced by least-recently-used eviction. Recency is
// defined by last touch (read or write), not insertion order.
type BoundedCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	policy  Policy

	seq        uint64
	totalBytes int
	hits       int64
	misses     int64
	evictions  int64

	stop      chan struct{}
	closeOnce sync.Once
}

// NewBoundedCache creates a bounded cache with the given policy and,
// when CleanupInterval is set, starts the background expiry sweeper.
func NewBoundedCache(policy Policy) *BoundedCache {
	c := &BoundedCache{
		entries: make(map[string]*entry),
		policy:  policy.normalize(),
		stop:    make(chan struct{}),
	}

	if c.policy.CleanupInterval > 0 {
		go c.sweeper(c.policy.CleanupInterval)
	}

	return c
}

// Set serializes the value and stores it under key. Entries larger
// than MaxEntryBytes fail with ErrSizeExceeded and perform no
// mutation; otherwise least-recently-used entries are evicted until
// the byte budget accommodates the insert.
func (c *BoundedCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}

	size := len(key) + len(encoded)

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.policy.MaxEntryBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrSizeExceeded, size, c.policy.MaxEntryBytes)
	}

	// Overwrite frees the old entry's bytes first.
	if old, ok := c.entries[key]; ok {
		c.totalBytes -= old.sizeBytes
		delete(c.entries, key)
	}

	c.evictLocked(size)

	c.seq++
	c.entries[key] = &entry{
		key:       key,
		encoded:   encoded,
		storedAt:  time.Now(),
		ttl:       c.policy.EffectiveTTL(ttl),
		sizeBytes: size,
		seq:       c.seq,
	}
	c.totalBytes += size

	return nil
}

// Get retrieves and deserializes the value under key. Expired entries
// are purged and reported as misses; entries that fail to deserialize
// are treated as corrupted, purged, and reported as misses.
func (c *BoundedCache) Get(_ context.Context, key string) (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false, nil
	}

	if e.expiredAt(time.Now()) {
		c.removeLocked(e)
		c.misses++
		return nil, false, nil
	}

	var value any
	if err := json.Unmarshal(e.encoded, &value); err != nil {
		// Corrupted entry: drop it rather than surfacing an error.
		c.removeLocked(e)
		c.misses++
		return nil, false, nil
	}

	c.hits++
	e.hitCount++
	c.seq++
	e.seq = c.seq

	return value, true, nil
}

// Has reports whether key is present and unexpired. Expired entries
// are purged, but Has does not bump recency or the hit/miss counters.
func (c *BoundedCache) Has(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	expired := ok && e.expiredAt(time.Now())
	c.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if expired {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && e.expiredAt(time.Now()) {
			c.removeLocked(e)
		}
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Delete removes the entry if present. Idempotent.
func (c *BoundedCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.removeLocked(e)
	return true, nil
}

// Clear removes all entries and resets hit/miss/eviction counters.
func (c *BoundedCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.totalBytes = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
	return nil
}

// InvalidatePattern deletes every key matching the regular expression
// and returns the count removed. A malformed pattern propagates.
func (c *BoundedCache) InvalidatePattern(_ context.Context, pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if re.MatchString(key) {
			c.removeLocked(e)
			removed++
		}
	}
	return removed, nil
}

// Cleanup eagerly sweeps all currently expired entries and returns the
// count removed.
func (c *BoundedCache) Cleanup(_ context.Context) (int, error) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, e := range c.entries {
		if e.expiredAt(now) {
			c.removeLocked(e)
			removed++
		}
	}
	return removed, nil
}

// Stats returns a snapshot of the engine's counters.
func (c *BoundedCache) Stats(_ context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Entries:   len(c.entries),
		Bytes:     c.totalBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}

	for _, e := range c.entries {
		if s.Oldest.IsZero() || e.storedAt.Before(s.Oldest) {
			s.Oldest = e.storedAt
		}
		if e.storedAt.After(s.Newest) {
			s.Newest = e.storedAt
		}
	}
	return s, nil
}

// Metadata returns entry attributes excluding the value, with the same
// expiry semantics as Get but without counting as an access.
func (c *BoundedCache) Metadata(_ context.Context, key string) (Metadata, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Metadata{}, false, nil
	}
	if e.expiredAt(time.Now()) {
		c.removeLocked(e)
		return Metadata{}, false, nil
	}

	return Metadata{
		Key:       e.key,
		StoredAt:  e.storedAt,
		TTL:       e.ttl,
		HitCount:  e.hitCount,
		SizeBytes: e.sizeBytes,
	}, true, nil
}

// Configure replaces the engine's limits, evicting as needed to fit a
// smaller budget. The sweeper interval is fixed at construction.
func (c *BoundedCache) Configure(policy Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	policy.CleanupInterval = c.policy.CleanupInterval
	c.policy = policy.normalize()
	c.evictLocked(0)
}

// Close stops the background sweeper. Idempotent.
func (c *BoundedCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
}

// evictLocked removes least-recently-used entries, ascending by access
// counter, until incoming bytes fit within the budget. Runs inside the
// insert's critical section so eviction never races the insert it is
// making room for.
func (c *BoundedCache) evictLocked(incoming int) {
	if c.totalBytes+incoming <= c.policy.MaxTotalBytes {
		return
	}

	candidates := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].seq < candidates[j].seq
	})

	for _, e := range candidates {
		if c.totalBytes+incoming <= c.policy.MaxTotalBytes {
			break
		}
		c.removeLocked(e)
		c.evictions++
	}
}

func (c *BoundedCache) removeLocked(e *entry) {
	if _, ok := c.entries[e.key]; !ok {
		return
	}
	delete(c.entries, e.key)
	c.totalBytes -= e.sizeBytes
}

func (c *BoundedCache) sweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			_, _ = c.Cleanup(context.Background())
		}
	}
}

// Ensure BoundedCache implements Cache
var _ Cache = (*BoundedCache)(nil)
