package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric pulls the first sample out of a Collector whose labels include
// every pair in want.
func findMetric(c prometheus.Collector, want map[string]string) *dto.Metric {
	ch := make(chan prometheus.Metric, 128)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}

		matched := 0
		for _, lp := range d.GetLabel() {
			if v, ok := want[lp.GetName()]; ok && lp.GetValue() == v {
				matched++
			}
		}
		if matched == len(want) {
			return d
		}
	}
	return nil
}

// metricsRouter mounts the handler on a parameterized user route so the chi
// route pattern is available as the path label.
func metricsRouter(service string, handler http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/v1/users/{id}", handler)
	return r
}

func TestPrometheusMetrics_CountsRequests(t *testing.T) {
	router := metricsRouter("identity-count", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	m := findMetric(httpRequestsTotal, map[string]string{
		"service": "identity-count",
		"method":  "GET",
		"path":    "/api/v1/users/{id}",
		"status":  "200",
	})
	require.NotNil(t, m)
	assert.GreaterOrEqual(t, m.GetCounter().GetValue(), float64(3))
}

func TestPrometheusMetrics_PathLabelIsRoutePattern(t *testing.T) {
	router := metricsRouter("identity-pattern", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/550e8400-e29b-41d4-a716-446655440001", nil))

	// The raw URL, with its user ID, must never appear as a label value.
	raw := findMetric(httpRequestsTotal, map[string]string{
		"service": "identity-pattern",
		"path":    "/api/v1/users/550e8400-e29b-41d4-a716-446655440001",
	})
	assert.Nil(t, raw)

	pattern := findMetric(httpRequestsTotal, map[string]string{
		"service": "identity-pattern",
		"path":    "/api/v1/users/{id}",
	})
	assert.NotNil(t, pattern)
}

func TestPrometheusMetrics_ObservesDuration(t *testing.T) {
	router := metricsRouter("identity-duration", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)

	m := findMetric(httpRequestDuration, map[string]string{
		"service": "identity-duration",
		"status":  "201",
	})
	require.NotNil(t, m)
	assert.GreaterOrEqual(t, m.GetHistogram().GetSampleCount(), uint64(1))
}

func TestPrometheusMetrics_InFlightGaugeDuringRequest(t *testing.T) {
	observed := float64(-1)
	router := metricsRouter("identity-inflight", func(w http.ResponseWriter, r *http.Request) {
		if m := findMetric(httpRequestsInFlight, map[string]string{"service": "identity-inflight"}); m != nil {
			observed = m.GetGauge().GetValue()
		}
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1", nil))

	assert.GreaterOrEqual(t, observed, float64(1))
}

func TestPrometheusMetrics_ErrorStatusRecorded(t *testing.T) {
	router := metricsRouter("identity-errors", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	m := findMetric(httpRequestsTotal, map[string]string{
		"service": "identity-errors",
		"status":  "401",
	})
	assert.NotNil(t, m)
}

func TestPrometheusMetrics_ImplicitStatusDefaultsTo200(t *testing.T) {
	router := metricsRouter("identity-implicit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1", nil))

	m := findMetric(httpRequestsTotal, map[string]string{
		"service": "identity-implicit",
		"status":  "200",
	})
	assert.NotNil(t, m)
}

func TestStatusRecorder_CapturesExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusConflict)

	assert.Equal(t, http.StatusConflict, rw.status)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
