package cache

import "time"

// Stats is a snapshot of the engine's counters.
type Stats struct {
	// Entries is the current number of live entries.
	Entries int

	// Bytes is the sum of sizeBytes over all live entries.
	Bytes int

	// Hits and Misses count Get outcomes since the last Clear.
	Hits   int64
	Misses int64

	// Evictions counts entries removed to satisfy the byte budget.
	Evictions int64

	// Oldest and Newest are the storedAt bounds of live entries.
	// Zero when the cache is empty.
	Oldest time.Time
	Newest time.Time
}

// HitRate returns hits/(hits+misses), or 0 when no reads happened.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MissRate returns misses/(hits+misses), or 0 when no reads happened.
func (s Stats) MissRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}
