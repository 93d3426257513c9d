package cache

import "errors"

// Sentinel errors for cache operations.
var (
	ErrNilCache        = errors.New("cache: cache is nil")
	ErrInvalidKey      = errors.New("cache: key is invalid")
	ErrKeyTooLong      = errors.New("cache: key exceeds max length")
	ErrSizeExceeded    = errors.New("cache: entry exceeds size limit")
	ErrInvalidPattern  = errors.New("cache: invalid invalidation pattern")
	ErrNotSerializable = errors.New("cache: value is not serializable")
)
