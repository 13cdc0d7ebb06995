package sonargate

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exposes Prometheus metrics for the request lifecycle and
// the resilience layers. All record methods are nil-safe so instrumentation
// can be optional.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	rateLimiterTokens prometheus.Gauge

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions prometheus.Counter
	cacheSize      prometheus.Gauge

	singleflightShared *prometheus.CounterVec

	circuitBreakerState prometheus.Gauge

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector registers collectors on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry registers collectors on the supplied
// registerer, which tests use to keep registrations isolated.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonargate_requests_total",
				Help: "Total number of upstream requests completed",
			},
			[]string{"resource_type", "status_code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sonargate_request_duration_seconds",
				Help:    "Duration of upstream requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource_type"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sonargate_requests_in_flight",
				Help: "Number of facade requests currently in flight",
			},
			[]string{"resource_type"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonargate_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"resource_type", "attempt"},
		),
		rateLimiterTokens: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "sonargate_rate_limiter_tokens",
				Help: "Currently available rate limiter tokens",
			},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonargate_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"resource_type"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonargate_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"resource_type"},
		),
		cacheEvictions: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "sonargate_cache_evictions_total",
				Help: "Total number of LRU cache evictions",
			},
		),
		cacheSize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "sonargate_cache_size",
				Help: "Current number of cache entries",
			},
		),
		singleflightShared: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonargate_singleflight_shared_total",
				Help: "Total number of callers that joined an in-flight fetch instead of issuing their own",
			},
			[]string{"resource_type"},
		),
		circuitBreakerState: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "sonargate_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonargate_errors_total",
				Help: "Total number of classified errors surfaced",
			},
			[]string{"type", "resource_type"},
		),
	}
}

// RecordRequest records one completed facade request.
func (mc *MetricsCollector) RecordRequest(resourceType string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.requestsTotal.WithLabelValues(resourceType, strconv.Itoa(statusCode)).Inc()
	mc.requestDuration.WithLabelValues(resourceType).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(resourceType string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(resourceType).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(resourceType string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(resourceType).Dec()
}

// RecordRetry counts one retry attempt.
func (mc *MetricsCollector) RecordRetry(resourceType string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(resourceType, strconv.Itoa(attempt)).Inc()
}

// RecordRateLimiterTokens sets the available-token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(tokens int) {
	if mc == nil {
		return
	}
	mc.rateLimiterTokens.Set(float64(tokens))
}

// RecordCacheHit counts a cache hit.
func (mc *MetricsCollector) RecordCacheHit(resourceType string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(resourceType).Inc()
}

// RecordCacheMiss counts a cache miss.
func (mc *MetricsCollector) RecordCacheMiss(resourceType string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(resourceType).Inc()
}

// RecordCacheEviction counts one LRU eviction.
func (mc *MetricsCollector) RecordCacheEviction() {
	if mc == nil {
		return
	}
	mc.cacheEvictions.Inc()
}

// RecordCacheSize sets the entry-count gauge.
func (mc *MetricsCollector) RecordCacheSize(size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.Set(float64(size))
}

// RecordSingleflightShared counts a caller that joined an in-flight fetch.
func (mc *MetricsCollector) RecordSingleflightShared(resourceType string) {
	if mc == nil {
		return
	}
	mc.singleflightShared.WithLabelValues(resourceType).Inc()
}

// RecordCircuitBreakerState sets the breaker state gauge.
func (mc *MetricsCollector) RecordCircuitBreakerState(state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitBreakerState.Set(float64(state))
}

// RecordError counts a classified error surfaced to the caller.
func (mc *MetricsCollector) RecordError(errorType, resourceType string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(errorType, resourceType).Inc()
}
