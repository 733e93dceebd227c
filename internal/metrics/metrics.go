package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Resolution metrics
	ResolutionsTotal          *prometheus.CounterVec
	ResolutionDurationSeconds *prometheus.HistogramVec

	// Database metrics
	QueriesTotal         *prometheus.CounterVec
	QueryDurationSeconds prometheus.Histogram

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// LLM metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMDurationSeconds *prometheus.HistogramVec
	LLMTokensTotal     *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPErrorsTotal     *prometheus.CounterVec
	HTTPDurationSeconds *prometheus.HistogramVec

	// Rate limiter metrics
	RateLimiterWaitDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Resolution metrics
		ResolutionsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlq_resolutions_total",
				Help: "Total number of intent resolutions by route and outcome",
			},
			[]string{"route", "outcome"}, // route: catalog, semantic, pattern, generative, none
		),

		ResolutionDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nlq_resolution_duration_seconds",
				Help:    "Intent resolution duration in seconds by route",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60}, // generative calls dominate the tail
			},
			[]string{"route"},
		),

		// Database metrics
		QueriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlq_db_queries_total",
				Help: "Total number of executed SQL queries by status",
			},
			[]string{"status"}, // status: success, error
		),

		QueryDurationSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nlq_db_query_duration_seconds",
				Help:    "SQL query execution duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),

		// Cache metrics
		CacheHitsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlq_cache_hits_total",
				Help: "Total number of cache hits by cache",
			},
			[]string{"cache"}, // cache: entities, analysis
		),

		CacheMissesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlq_cache_misses_total",
				Help: "Total number of cache misses by cache",
			},
			[]string{"cache"},
		),

		// LLM metrics
		LLMRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlq_llm_requests_total",
				Help: "Total number of LLM requests by provider, operation and status",
			},
			[]string{"provider", "operation", "status"}, // operation: generate, embed
		),

		LLMDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nlq_llm_duration_seconds",
				Help:    "LLM request duration in seconds by provider and operation",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider", "operation"},
		),

		LLMTokensTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlq_llm_tokens_total",
				Help: "Total LLM tokens consumed by provider and kind",
			},
			[]string{"provider", "kind"}, // kind: prompt, completion
		),

		// HTTP metrics
		HTTPRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlq_http_requests_total",
				Help: "Total HTTP requests by path and status code",
			},
			[]string{"path", "status"},
		),

		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlq_http_errors_total",
				Help: "Total HTTP errors by type and path",
			},
			[]string{"error_type", "path"}, // error_type: validation, not_read_only, db, upstream
		),

		HTTPDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nlq_http_duration_seconds",
				Help:    "HTTP request duration in seconds by path",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
			},
			[]string{"path"},
		),

		// Rate limiter metrics
		RateLimiterWaitDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nlq_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for rate limiter token by limiter type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5}, // 1ms to 5s
			},
			[]string{"limiter_type"}, // limiter_type: embedding
		),
	}

	return m
}

// RecordResolution records one intent resolution with its route and outcome
func (m *Metrics) RecordResolution(route, outcome string, duration float64) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(route, outcome).Inc()
	m.ResolutionDurationSeconds.WithLabelValues(route).Observe(duration)
}

// RecordQuery records an executed SQL query
func (m *Metrics) RecordQuery(status string, duration float64) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(status).Inc()
	m.QueryDurationSeconds.Observe(duration)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordLLMRequest records an LLM request with status
func (m *Metrics) RecordLLMRequest(provider, operation, status string, duration float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	m.LLMDurationSeconds.WithLabelValues(provider, operation).Observe(duration)
}

// RecordLLMTokens records token usage for one LLM call
func (m *Metrics) RecordLLMTokens(provider string, prompt, completion int64) {
	if m == nil {
		return
	}
	m.LLMTokensTotal.WithLabelValues(provider, "prompt").Add(float64(prompt))
	m.LLMTokensTotal.WithLabelValues(provider, "completion").Add(float64(completion))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(path, status string, duration float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(path, status).Inc()
	m.HTTPDurationSeconds.WithLabelValues(path).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, path string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(errorType, path).Inc()
}

// RecordRateLimiterWait records time spent waiting for rate limiter
func (m *Metrics) RecordRateLimiterWait(limiterType string, duration float64) {
	if m == nil {
		return
	}
	m.RateLimiterWaitDuration.WithLabelValues(limiterType).Observe(duration)
}
