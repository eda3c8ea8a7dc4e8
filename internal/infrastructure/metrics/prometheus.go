package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transports used as the "transport" label.
const (
	TransportGRPC = "grpc"
	TransportHTTP = "http"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	cacheHits        prometheus.Gauge
	cacheMisses      prometheus.Gauge
	cacheHitRate     prometheus.Gauge
	cacheKeys        prometheus.Gauge
	cacheMemoryBytes prometheus.Gauge
	cacheEvictions   prometheus.Gauge
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	errors           *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter whose metrics are
// registered with reg.
func NewPrometheusExporter(reg prometheus.Registerer, collector *Collector) *PrometheusExporter {
	factory := promauto.With(reg)
	return &PrometheusExporter{
		collector: collector,
		cacheHits: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reviewlab_record_cache_hits",
			Help: "Cache hits for serialized records since start",
		}),
		cacheMisses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reviewlab_record_cache_misses",
			Help: "Cache misses for serialized records since start",
		}),
		cacheHitRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reviewlab_record_cache_hit_rate",
			Help: "Current cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reviewlab_record_cache_keys_current",
			Help: "Current number of keys in the record cache",
		}),
		cacheMemoryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reviewlab_record_cache_memory_bytes",
			Help: "Approximate memory usage of the record cache in bytes",
		}),
		cacheEvictions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reviewlab_record_cache_evictions",
			Help: "Cache evictions due to memory limits since start",
		}),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewlab_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"transport", "operation"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reviewlab_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"transport", "operation"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewlab_errors_total",
				Help: "Total number of API requests that failed",
			},
			[]string{"transport", "operation"},
		),
	}
}

// Update refreshes the cache gauges from the collector.
// Request counters are updated by the interceptor and middleware.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	m := e.collector.GetCacheMetrics()
	e.cacheHits.Set(float64(m.Hits))
	e.cacheMisses.Set(float64(m.Misses))
	e.cacheHitRate.Set(m.HitRate)
	e.cacheKeys.Set(float64(m.KeysCurrent))
	e.cacheMemoryBytes.Set(float64(m.MemoryBytes))
	e.cacheEvictions.Set(float64(m.Evictions))
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(transport, operation string) {
	e.requests.WithLabelValues(transport, operation).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(transport, operation string, durationSeconds float64) {
	e.duration.WithLabelValues(transport, operation).Observe(durationSeconds)
}

// RecordError records an error in Prometheus.
func (e *PrometheusExporter) RecordError(transport, operation string) {
	e.errors.WithLabelValues(transport, operation).Inc()
}
