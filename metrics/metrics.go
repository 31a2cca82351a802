// Package metrics provides Prometheus metrics for the HTTP server and the matching
// and risk engine:
//   - http_request_total, http_request_duration_seconds, http_request_in_flight
//   - ingredient_match_total by tier (exact, fuzzy, direct, unmatched)
//   - analysis_findings_total by level and kind, analysis_duration_seconds
//   - catalog_reload_total by status, search_cache_requests_total by result
//
// All metrics are registered with the Prometheus default registry during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (client IPs currently tracked)",
		},
	)

	IngredientMatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingredient_match_total",
			Help: "Candidate resolutions by matching tier",
		},
		[]string{"tier"},
	)

	AnalysisFindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_findings_total",
			Help: "Interaction findings emitted by level and kind",
		},
		[]string{"level", "kind"},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Interaction analysis latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	CatalogReloadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reload_total",
			Help: "Catalog reload attempts by status",
		},
		[]string{"status"},
	)

	SearchCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_requests_total",
			Help: "Autocomplete cache lookups by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(IngredientMatchTotal)
	prometheus.MustRegister(AnalysisFindingsTotal)
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(CatalogReloadTotal)
	prometheus.MustRegister(SearchCacheRequests)
}
