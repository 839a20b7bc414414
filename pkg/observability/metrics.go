package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Decision metrics
	DecisionsTotal     *prometheus.CounterVec
	DecisionDuration   *prometheus.HistogramVec
	DenialsByReason    *prometheus.CounterVec
	EnrichmentsTotal   *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec

	// Decision cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
	CachePurgesTotal    prometheus.Counter
	CacheEntries        prometheus.Gauge

	// Bundle distribution metrics
	BundleSwapsTotal           prometheus.Counter
	BundleVerificationFailures prometheus.Counter
	BundleRollbacksTotal       prometheus.Counter
	BundleDriftedReplicas      prometheus.Gauge
	ActiveBundleInfo           *prometheus.GaugeVec

	// Audit metrics
	AuditRecordsTotal   *prometheus.CounterVec
	AuditWriteFailures  prometheus.Counter
	AuditQueueDepth     prometheus.Gauge
	AuditBackpressure   prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Redis metrics
	RedisConnectionsActive prometheus.Gauge

	mu                  sync.Mutex
	activeBundleVersion string
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdp_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdp_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdp_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdp_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Decision metrics
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdp_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"decision"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdp_decision_duration_seconds",
				Help:    "Authorization decision latency in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
			},
			[]string{"cached"},
		),
		DenialsByReason: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdp_denials_by_reason_total",
				Help: "Denials broken down by first failing check",
			},
			[]string{"reason"},
		),
		EnrichmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdp_enrichments_total",
				Help: "Attribute enrichments applied before validation",
			},
			[]string{"method", "confidence"},
		),
		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdp_validation_failures_total",
				Help: "Claim validation failures by field",
			},
			[]string{"field"},
		),

		// Decision cache metrics
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdp_decision_cache_hits_total",
				Help: "Total number of decision cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdp_decision_cache_misses_total",
				Help: "Total number of decision cache misses",
			},
		),
		CacheEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdp_decision_cache_evictions_total",
				Help: "Total number of decision cache evictions",
			},
		),
		CachePurgesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdp_decision_cache_purges_total",
				Help: "Full cache purges triggered by bundle swaps",
			},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdp_decision_cache_entries",
				Help: "Current number of cached decisions",
			},
		),

		// Bundle distribution metrics
		BundleSwapsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdp_bundle_swaps_total",
				Help: "Total number of policy bundle activations",
			},
		),
		BundleVerificationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdp_bundle_verification_failures_total",
				Help: "Bundles rejected for digest or signature failures",
			},
		),
		BundleRollbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdp_bundle_rollbacks_total",
				Help: "Total number of bundle rollbacks",
			},
		),
		BundleDriftedReplicas: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdp_bundle_drifted_replicas",
				Help: "Replicas reporting a bundle version behind the hub",
			},
		),
		ActiveBundleInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pdp_active_bundle_info",
				Help: "Active policy bundle version (value is always 1)",
			},
			[]string{"version"},
		),

		// Audit metrics
		AuditRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdp_audit_records_total",
				Help: "Audit records written by type",
			},
			[]string{"type"},
		),
		AuditWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdp_audit_write_failures_total",
				Help: "Audit records that failed to persist",
			},
		),
		AuditQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdp_audit_queue_depth",
				Help: "Audit records waiting in the write queue",
			},
		),
		AuditBackpressure: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdp_audit_backpressure_total",
				Help: "Requests rejected because the audit queue was full",
			},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdp_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdp_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		// Redis metrics
		RedisConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdp_redis_connections_active",
				Help: "Number of active Redis connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.DecisionsTotal,
		m.DecisionDuration,
		m.DenialsByReason,
		m.EnrichmentsTotal,
		m.ValidationFailures,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CachePurgesTotal,
		m.CacheEntries,
		m.BundleSwapsTotal,
		m.BundleVerificationFailures,
		m.BundleRollbacksTotal,
		m.BundleDriftedReplicas,
		m.ActiveBundleInfo,
		m.AuditRecordsTotal,
		m.AuditWriteFailures,
		m.AuditQueueDepth,
		m.AuditBackpressure,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.RedisConnectionsActive,
	)

	return m
}

// SetActiveBundleVersion exports the active bundle version as an info-style
// gauge, clearing the previous version's series.
func (m *Metrics) SetActiveBundleVersion(version string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeBundleVersion != "" {
		m.ActiveBundleInfo.DeleteLabelValues(m.activeBundleVersion)
	}
	m.ActiveBundleInfo.WithLabelValues(version).Set(1)
	m.activeBundleVersion = version
}

// RecordDecision updates the decision counters for one evaluation.
func (m *Metrics) RecordDecision(allow bool, firstDenyReason string, cached bool, elapsed time.Duration) {
	decision := "deny"
	if allow {
		decision = "allow"
	}
	m.DecisionsTotal.WithLabelValues(decision).Inc()
	if !allow && firstDenyReason != "" {
		m.DenialsByReason.WithLabelValues(firstDenyReason).Inc()
	}
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
	}
	m.DecisionDuration.WithLabelValues(cachedLabel).Observe(elapsed.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
