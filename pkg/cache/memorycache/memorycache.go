package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/asakaida/reviewlab/pkg/cache"
	"github.com/jonboulle/clockwork"
)

// entry represents a cache entry with value and metadata
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	size      int64 // Approximate memory size in bytes
}

// Cache implements an LRU cache with TTL support.
type Cache[V any] struct {
	mu sync.Mutex

	// LRU tracking
	items     map[string]*list.Element // key -> list element
	evictList *list.List               // front = most recent, back = least recent

	// Configuration
	maxSize int64
	ttl     time.Duration
	sizeOf  func(key string, value V) int64
	clock   clockwork.Clock

	currentSize int64

	metrics *cacheMetrics
}

type cacheMetrics struct {
	hits        uint64
	misses      uint64
	keysAdded   uint64
	keysEvicted uint64
}

// Config holds configuration for the memory cache.
type Config[V any] struct {
	// MaxSizeBytes is the maximum total size of cached items in bytes.
	// When this limit is exceeded, least recently used items are evicted.
	MaxSizeBytes int64

	// DefaultTTL applies when Set is called with a zero ttl.
	DefaultTTL time.Duration

	// EnableMetrics enables collection of cache metrics.
	EnableMetrics bool

	// SizeOf estimates the memory held by an entry. Defaults to 100 bytes
	// plus the key length.
	SizeOf func(key string, value V) int64

	// Clock drives expiry. Defaults to the real clock.
	Clock clockwork.Clock
}

// New creates a new memory cache with the given configuration.
func New[V any](config *Config[V]) *Cache[V] {
	c := &Cache[V]{
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		maxSize:   config.MaxSizeBytes,
		ttl:       config.DefaultTTL,
		sizeOf:    config.SizeOf,
		clock:     config.Clock,
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.sizeOf == nil {
		c.sizeOf = func(key string, _ V) int64 { return int64(100 + len(key)) }
	}
	if config.EnableMetrics {
		c.metrics = &cacheMetrics{}
	}
	return c
}

var _ cache.Cache[int] = (*Cache[int])(nil)

// Get retrieves a value from cache.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, exists := c.items[key]
	if !exists {
		c.miss()
		return zero, false
	}

	ent := elem.Value.(*entry[V])
	if c.clock.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.miss()
		return zero, false
	}

	c.evictList.MoveToFront(elem)
	if c.metrics != nil {
		c.metrics.hits++
	}
	return ent.value, true
}

func (c *Cache[V]) miss() {
	if c.metrics != nil {
		c.metrics.misses++
	}
}

// Set stores a value in cache with the specified TTL.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	size := c.sizeOf(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		ent := elem.Value.(*entry[V])
		c.currentSize += size - ent.size
		ent.value = value
		ent.expiresAt = c.clock.Now().Add(ttl)
		ent.size = size
		c.evictList.MoveToFront(elem)
	} else {
		ent := &entry[V]{
			key:       key,
			value:     value,
			expiresAt: c.clock.Now().Add(ttl),
			size:      size,
		}
		c.items[key] = c.evictList.PushFront(ent)
		c.currentSize += size
		if c.metrics != nil {
			c.metrics.keysAdded++
		}
	}

	// Evict LRU items if over capacity
	for c.currentSize > c.maxSize && c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
		if c.metrics != nil {
			c.metrics.keysEvicted++
		}
	}

	return nil
}

// Delete removes values from cache.
func (c *Cache[V]) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if elem, exists := c.items[key]; exists {
			c.removeElement(elem)
		}
	}
	return nil
}

// Clear removes all entries from cache.
func (c *Cache[V]) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.currentSize = 0
	return nil
}

// Close releases resources (no-op for memory cache).
func (c *Cache[V]) Close() error {
	return nil
}

// Stats returns cache statistics.
func (c *Cache[V]) Stats() *cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := &cache.Stats{
		KeysCurrent: int64(c.evictList.Len()),
		SizeBytes:   c.currentSize,
	}
	if c.metrics != nil {
		stats.Hits = c.metrics.hits
		stats.Misses = c.metrics.misses
		stats.KeysAdded = c.metrics.keysAdded
		stats.KeysEvicted = c.metrics.keysEvicted
	}
	return stats
}

// removeElement removes an element from cache (must be called with lock held).
func (c *Cache[V]) removeElement(elem *list.Element) {
	c.evictList.Remove(elem)
	ent := elem.Value.(*entry[V])
	delete(c.items, ent.key)
	c.currentSize -= ent.size
}

// Len returns the current number of items in cache.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}
