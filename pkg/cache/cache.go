package cache

import (
	"context"
	"strconv"
	"time"
)

// Cache stores serialized payloads by key. Get, Set and Delete are safe for
// concurrent use.
type Cache[V any] interface {
	// Get retrieves a value from cache.
	// Returns the value and true if found, or the zero value and false if not.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores a value in cache. A ttl of zero uses the cache default.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes values from cache. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Clear removes all entries from cache.
	Clear(ctx context.Context) error

	// Close releases resources held by the cache.
	Close() error

	// Stats returns cache statistics.
	Stats() *Stats
}

// Stats holds cache performance statistics.
type Stats struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64 // Evicted by the size limit, not by TTL

	KeysCurrent int64
	SizeBytes   int64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s *Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total)
}

// Key builds a cache key such as "customer:1".
func Key(kind string, id int64) string {
	return kind + ":" + strconv.FormatInt(id, 10)
}
