package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo call rate per endpoint. Watch for: error vs success ratio.
	FetchCallsTotal *prometheus.CounterVec

	// Open-Meteo latency per request. Watch for: p95 > 2s (upstream degradation).
	FetchDuration *prometheus.HistogramVec

	// Retry attempts against Open-Meteo. Watch for: high retries = unstable upstream.
	FetchRetriesTotal prometheus.Counter

	// Refreshes answered from held state by the throttle policy.
	RefreshSkippedTotal prometheus.Counter

	// Completed fetches discarded because a newer fetch was issued meanwhile.
	StaleFetchDiscardedTotal prometheus.Counter

	// Snapshot cache hits by backend type.
	CacheHitsTotal *prometheus.CounterVec

	// Stale snapshots served after an upstream fetch failure.
	StaleServesTotal prometheus.Counter

	// Write-behind preference persists that failed, by storage key.
	PersistFailuresTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Upstream circuit breaker state. Watch for: sustained 1 (open) = outage.
	CircuitBreakerState *prometheus.GaugeVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	FetchCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherFetchCallsTotal",
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"endpoint", "status"},
	)
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherFetchDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	FetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherFetchRetriesTotal",
			Help: "Total number of retry attempts for Open-Meteo calls",
		},
	)
	RefreshSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refreshSkippedTotal",
			Help: "Refreshes answered from held state by the throttle policy",
		},
	)
	StaleFetchDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "staleFetchDiscardedTotal",
			Help: "Completed fetches discarded because a newer fetch was issued",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of snapshot cache hits",
		},
		[]string{"cacheType"},
	)
	StaleServesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "staleCacheServesTotal",
			Help: "Stale snapshots served after an upstream fetch failure",
		},
	)
	PersistFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preferencePersistFailuresTotal",
			Help: "Write-behind preference persists that failed",
		},
		[]string{"key"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per component (0=closed, 1=open, 2=half-open)",
		},
		[]string{"component"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		FetchCallsTotal, FetchDuration, FetchRetriesTotal,
		RefreshSkippedTotal, StaleFetchDiscardedTotal,
		CacheHitsTotal, StaleServesTotal,
		PersistFailuresTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
