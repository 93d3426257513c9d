// Package cache provides a bounded in-memory cache engine and a
// resilient wrapper around it.
//
// BoundedCache enforces per-entry TTLs and a global byte budget with
// strict least-recently-used eviction. Values are round-tripped
// through their JSON encoding so corrupt entries are detected and
// dropped as misses, and so size accounting approximates memory cost.
//
// ResilientCache wraps any Cache with retries, a sticky degraded
// state, a direct-retrieval fallback, and background recovery, so
// callers never observe errors from a down cache.
package cache
