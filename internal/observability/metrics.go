// Package observability carries request-scoped context values and the
// domain-level Prometheus metrics for the recommendation core: cache
// hit/miss rates, circuit breaker state, event throughput, and product-cache
// tier hits.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/retail-reco/core/internal/breaker"
	"github.com/retail-reco/core/internal/domain"
)

var (
	// CacheRequestsTotal counts diversity/product cache lookups by cache name
	// and outcome ("hit"/"miss").
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total cache lookups by cache and outcome",
		},
		[]string{"cache", "outcome"},
	)

	// ProductCacheTierHitsTotal counts product resolutions by the tier that
	// served them: kv, local, remote, synthetic, or miss.
	ProductCacheTierHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_cache_tier_hits_total",
			Help: "Product cache resolutions by serving tier",
		},
		[]string{"tier"},
	)

	// CircuitBreakerState tracks named breaker state (0=closed, 1=open,
	// 2=half-open), mirroring the per-breaker naming the original carries
	// into Prometheus labels (event_store_read, event_store_write, kv_connect).
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	// CircuitBreakerSuccessRate mirrors breaker.Stats.SuccessRate per named
	// breaker.
	CircuitBreakerSuccessRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_success_rate",
			Help: "Circuit breaker rolling success rate",
		},
		[]string{"breaker"},
	)

	// EventsRecordedTotal counts user events accepted into the event store by
	// event type.
	EventsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_recorded_total",
			Help: "Total user events recorded by event type",
		},
		[]string{"event_type"},
	)

	// EventsFlushedTotal and EventsFlushFailedTotal track the periodic
	// buffer-flush outcome.
	EventsFlushedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "events_flushed_total",
			Help: "Total successful event store buffer flushes",
		},
	)
	EventsFlushFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "events_flush_failed_total",
			Help: "Total failed event store buffer flushes",
		},
	)

	// RecommendationResponseSeconds records orchestrator recommend() latency.
	RecommendationResponseSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_response_seconds",
			Help:    "Orchestrator recommend() response time",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	// ErrorFallbackTotal counts recommend() responses that degraded to the
	// emergency placeholder ladder.
	ErrorFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_error_fallback_total",
			Help: "Total recommend() responses served entirely from the fallback placeholder ladder",
		},
	)
)

// InitMetrics registers all domain metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(CacheRequestsTotal)
	prometheus.MustRegister(ProductCacheTierHitsTotal)
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerSuccessRate)
	prometheus.MustRegister(EventsRecordedTotal)
	prometheus.MustRegister(EventsFlushedTotal)
	prometheus.MustRegister(EventsFlushFailedTotal)
	prometheus.MustRegister(RecommendationResponseSeconds)
	prometheus.MustRegister(ErrorFallbackTotal)
}

// RecordCacheHit increments the hit counter for the named cache.
func RecordCacheHit(cache string) {
	CacheRequestsTotal.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss increments the miss counter for the named cache.
func RecordCacheMiss(cache string) {
	CacheRequestsTotal.WithLabelValues(cache, "miss").Inc()
}

// RecordProductCacheTierHit increments the tier counter that served a
// product resolution ("kv", "local", "remote", "synthetic", or "miss").
func RecordProductCacheTierHit(tier string) {
	ProductCacheTierHitsTotal.WithLabelValues(tier).Inc()
}

// RecordEventRecorded increments the per-type event counter.
func RecordEventRecorded(eventType string) {
	EventsRecordedTotal.WithLabelValues(eventType).Inc()
}

// RecordEventFlush records a buffer-flush outcome.
func RecordEventFlush(success bool) {
	if success {
		EventsFlushedTotal.Inc()
		return
	}
	EventsFlushFailedTotal.Inc()
}

// RecordRecommendation records one orchestrator recommend() outcome.
func RecordRecommendation(elapsedSeconds float64, errorFallback bool) {
	RecommendationResponseSeconds.Observe(elapsedSeconds)
	if errorFallback {
		ErrorFallbackTotal.Inc()
	}
}

// circuitStateValue maps a breaker's CircuitState to the Prometheus gauge
// convention (0=closed, 1=open, 2=half-open).
func circuitStateValue(s domain.CircuitState) float64 {
	switch s {
	case domain.CircuitOpen:
		return 1
	case domain.CircuitHalfOpen:
		return 2
	default:
		return 0
	}
}

// RecordBreakerStats publishes a named breaker's current state and success
// rate, called wherever a breaker.Stats snapshot is already being collected
// (Service Factory health checks, Event Store stats).
func RecordBreakerStats(stats breaker.Stats) {
	if stats.Name == "" {
		return
	}
	CircuitBreakerState.WithLabelValues(stats.Name).Set(circuitStateValue(stats.State))
	CircuitBreakerSuccessRate.WithLabelValues(stats.Name).Set(stats.SuccessRate)
}
