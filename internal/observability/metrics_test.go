package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/payables/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jobs.Track("audit:record").End(nil)

	body := scrape(t, metrics)
	require.Contains(t, body, `payables_jobs_total{job="audit:record",status="success"} 1`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `payables_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `payables_http_request_duration_seconds_bucket{route="/test"`)
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordPayment("pending")
	metrics.RecordPayment("approved")
	metrics.RecordPayment("approved")
	metrics.RecordRequestEvent("request.approved")
	metrics.ObserveDelivery("payment.recorded", nil)
	metrics.ObserveDelivery("payment.recorded", errors.New("sink down"))
	metrics.ObserveDrop("request.created")

	body := scrape(t, metrics)
	for _, want := range []string{
		`payables_payments_total{status="approved"} 2`,
		`payables_payments_total{status="pending"} 1`,
		`payables_requests_total{event="request.approved"} 1`,
		`payables_audit_deliveries_total{event="payment.recorded",result="error"} 1`,
		`payables_audit_deliveries_total{event="payment.recorded",result="ok"} 1`,
		`payables_audit_dropped_total{event="request.created"} 1`,
	} {
		require.True(t, strings.Contains(body, want), "missing %s", want)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	require.NotPanics(t, func() {
		metrics.RecordPayment("approved")
		metrics.RecordRequestEvent("request.created")
		metrics.ObserveDelivery("x", nil)
		metrics.ObserveDrop("x")
	})
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
