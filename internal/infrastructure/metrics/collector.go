package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/asakaida/reviewlab/pkg/cache"
)

// StatsSource is anything that reports cache statistics.
type StatsSource interface {
	Stats() *cache.Stats
}

// Collector collects and aggregates metrics for the application.
type Collector struct {
	// API metrics, keyed by operation (gRPC full method or HTTP route)
	apiRequests sync.Map // map[string]*uint64
	apiErrors   sync.Map // map[string]*uint64
	apiDuration sync.Map // map[string]*durationValue

	mu    sync.RWMutex
	cache StatsSource
}

// durationValue holds duration with mutex for thread-safe updates.
type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// CacheMetrics holds cache performance metrics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	MemoryBytes int64
	Evictions   uint64
}

// APIMetrics holds API request metrics.
type APIMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	TotalDurationSeconds map[string]float64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the cache whose statistics are reported.
func (c *Collector) SetCache(source StatsSource) {
	c.mu.Lock()
	c.cache = source
	c.mu.Unlock()
}

// RecordRequest records an API request.
func (c *Collector) RecordRequest(operation string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.apiRequests, operation), 1)
}

// RecordError records an API error.
func (c *Collector) RecordError(operation string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.apiErrors, operation), 1)
}

// RecordDuration records the duration of an API call in seconds.
func (c *Collector) RecordDuration(operation string, durationSeconds float64) {
	val, _ := c.apiDuration.LoadOrStore(operation, &durationValue{})
	dv := val.(*durationValue)

	dv.mu.Lock()
	dv.totalSeconds += durationSeconds
	dv.mu.Unlock()
}

// GetCacheMetrics returns current cache metrics.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	c.mu.RLock()
	source := c.cache
	c.mu.RUnlock()

	if source == nil {
		return &CacheMetrics{}
	}
	stats := source.Stats()
	if stats == nil {
		return &CacheMetrics{}
	}

	return &CacheMetrics{
		Hits:        stats.Hits,
		Misses:      stats.Misses,
		HitRate:     stats.HitRate(),
		KeysCurrent: stats.KeysCurrent,
		MemoryBytes: stats.SizeBytes,
		Evictions:   stats.KeysEvicted,
	}
}

// GetAPIMetrics returns current API metrics.
func (c *Collector) GetAPIMetrics() *APIMetrics {
	result := &APIMetrics{
		RequestCounts:        make(map[string]uint64),
		ErrorCounts:          make(map[string]uint64),
		TotalDurationSeconds: make(map[string]float64),
	}

	c.apiRequests.Range(func(key, value any) bool {
		result.RequestCounts[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})

	c.apiErrors.Range(func(key, value any) bool {
		result.ErrorCounts[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})

	c.apiDuration.Range(func(key, value any) bool {
		dv := value.(*durationValue)
		dv.mu.Lock()
		result.TotalDurationSeconds[key.(string)] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return result
}

// getOrCreateCounter gets or creates a counter for the given key.
func (c *Collector) getOrCreateCounter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}
