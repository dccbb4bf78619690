package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	requestEvents   *prometheus.CounterVec
	auditDelivered  *prometheus.CounterVec
	auditDropped    *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry, metrik HTTP dan metrik domain.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payables_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payables_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payables_payments_total",
		Help: "Payments written by the ledger, by resulting status.",
	}, []string{"status"})
	requestEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payables_requests_total",
		Help: "Master-data request lifecycle events.",
	}, []string{"event"})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payables_audit_deliveries_total",
		Help: "Audit outbox deliveries by event and result.",
	}, []string{"event", "result"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payables_audit_dropped_total",
		Help: "Audit events dropped because the outbox was full.",
	}, []string{"event"})
	registry.MustRegister(requests, duration, payments, requestEvents, delivered, dropped)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		payments:        payments,
		requestEvents:   requestEvents,
		auditDelivered:  delivered,
		auditDropped:    dropped,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// RecordPayment counts a payment written with the given status.
func (m *Metrics) RecordPayment(status string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(status).Inc()
}

// RecordRequestEvent counts a request lifecycle event.
func (m *Metrics) RecordRequestEvent(event string) {
	if m == nil {
		return
	}
	m.requestEvents.WithLabelValues(event).Inc()
}

// ObserveDelivery records an audit sink outcome.
func (m *Metrics) ObserveDelivery(event string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.auditDelivered.WithLabelValues(event, result).Inc()
}

// ObserveDrop records an event lost to a full outbox.
func (m *Metrics) ObserveDrop(event string) {
	if m == nil {
		return
	}
	m.auditDropped.WithLabelValues(event).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
