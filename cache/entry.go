package cache

import "time"

// entry is one stored value. Values are round-tripped through their
// JSON encoding so corrupt entries can be detected and dropped, and so
// size accounting reflects an approximation of memory cost.
type entry struct {
	key       string
	encoded   []byte
	storedAt  time.Time
	ttl       time.Duration
	hitCount  int64
	sizeBytes int
	seq       uint64 // recency: monotonic counter bumped on every touch
}

// expiredAt reports whether the entry is past its TTL at the given time.
func (e *entry) expiredAt(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Metadata describes a cached entry without its value.
type Metadata struct {
	Key       string
	StoredAt  time.Time
	TTL       time.Duration
	HitCount  int64
	SizeBytes int
}
