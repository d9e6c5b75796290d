package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricsRouter mounts PrometheusMetrics on a chi router the way the
// storefront does. Each test uses its own service label to stay isolated
// from the shared default registry.
func metricsRouter(service string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	})
	r.Get("/api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/contact", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	return r
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestPrometheusMetrics_CountsByRouteAndStatus(t *testing.T) {
	r := metricsRouter("metrics-count")

	serve(r, http.MethodGet, "/")
	serve(r, http.MethodGet, "/")
	serve(r, http.MethodPost, "/contact")

	page := findMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-count", "method": "GET", "path": "/", "status": "200",
	})
	require.NotNil(t, page)
	assert.Equal(t, float64(2), page.GetCounter().GetValue())

	contact := findMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-count", "method": "POST", "path": "/contact", "status": "502",
	})
	require.NotNil(t, contact)
	assert.Equal(t, float64(1), contact.GetCounter().GetValue())
}

func TestPrometheusMetrics_RoutePatternKeepsCardinalityLow(t *testing.T) {
	r := metricsRouter("metrics-pattern")

	serve(r, http.MethodGet, "/api/v1/sessions/5b0b3d7e-0000-4000-8000-000000000001")
	serve(r, http.MethodGet, "/api/v1/sessions/5b0b3d7e-0000-4000-8000-000000000002")

	m := findMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-pattern", "path": "/api/v1/sessions/{id}", "status": "404",
	})
	require.NotNil(t, m)
	assert.Equal(t, float64(2), m.GetCounter().GetValue())
}

func TestPrometheusMetrics_UnmatchedPath(t *testing.T) {
	r := metricsRouter("metrics-unmatched")

	serve(r, http.MethodGet, "/wp-admin/setup.php")

	m := findMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-unmatched", "path": unmatchedRoute,
	})
	require.NotNil(t, m)
	assert.Equal(t, float64(1), m.GetCounter().GetValue())
}

func TestPrometheusMetrics_OutsideRouter(t *testing.T) {
	h := PrometheusMetrics("metrics-bare")(okHandler())

	serve(h, http.MethodGet, "/status")

	m := findMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-bare", "path": unmatchedRoute, "status": "200",
	})
	require.NotNil(t, m)
}

func TestPrometheusMetrics_DurationAndInFlight(t *testing.T) {
	var during float64
	h := PrometheusMetrics("metrics-inflight")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = findMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight"}).GetGauge().GetValue()
	}))

	serve(h, http.MethodGet, "/")

	assert.Equal(t, float64(1), during)
	after := findMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight"})
	require.NotNil(t, after)
	assert.Equal(t, float64(0), after.GetGauge().GetValue())

	hist := findMetric(t, httpRequestDuration, map[string]string{"service": "metrics-inflight"})
	require.NotNil(t, hist)
	assert.Equal(t, uint64(1), hist.GetHistogram().GetSampleCount())
}
