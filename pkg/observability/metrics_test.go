package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics(prometheus.NewRegistry())
}

func TestNewMetricsRegistersWithoutPanic(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	m.DecisionsTotal.WithLabelValues("allow").Inc()
	m.CacheHitsTotal.Inc()
	m.BundleSwapsTotal.Inc()
	m.AuditRecordsTotal.WithLabelValues("decision").Inc()

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordDecision(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDecision(false, "insufficient clearance", false, 2*time.Millisecond)
	m.RecordDecision(false, "insufficient clearance", false, time.Millisecond)
	m.RecordDecision(true, "", true, time.Microsecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("allow")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DenialsByReason.WithLabelValues("insufficient clearance")))
}

func TestRecordDecisionAllowSkipsDenialReason(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDecision(true, "insufficient clearance", false, time.Millisecond)

	assert.Equal(t, 0, testutil.CollectAndCount(m.DenialsByReason))
}

func TestSetActiveBundleVersionReplacesSeries(t *testing.T) {
	m := newTestMetrics(t)

	m.SetActiveBundleVersion("2026.08.1")
	m.SetActiveBundleVersion("2026.08.2")

	// Only the current version's series remains.
	assert.Equal(t, 1, testutil.CollectAndCount(m.ActiveBundleInfo))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveBundleInfo.WithLabelValues("2026.08.2")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := newTestMetrics(t)

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"decision":"deny"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/authorize", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/authorize", "403")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.DecisionsTotal.WithLabelValues("deny").Inc()

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pdp_decisions_total")
}
