package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "treasury"

// TreasuryMetrics owns a private registry so tests and multiple servers in one
// process do not collide. All methods are safe on a nil receiver.
type TreasuryMetrics struct {
	registry            *prometheus.Registry
	operations          *prometheus.CounterVec
	confirmationLatency *prometheus.HistogramVec
	requests            *prometheus.CounterVec
	requestDurations    *prometheus.HistogramVec
}

func NewTreasuryMetrics() *TreasuryMetrics {
	registry := prometheus.NewRegistry()
	m := &TreasuryMetrics{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Treasury operations by type and final outcome.",
		}, []string{"operation", "outcome"}),
		confirmationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to a mined receipt.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120, 300},
		}, []string{"operation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the treasury API.",
		}, []string{"route", "method", "status"}),
		requestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	registry.MustRegister(m.operations, m.confirmationLatency, m.requests, m.requestDurations)
	return m
}

// TrackQueueDepth exposes depth as the submission queue gauge. Call it once.
func (m *TreasuryMetrics) TrackQueueDepth(depth func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "submission_queue_depth",
		Help:      "Transactions waiting for or holding the treasury nonce.",
	}, func() float64 {
		return float64(depth())
	}))
}

func (m *TreasuryMetrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *TreasuryMetrics) ObserveConfirmation(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.confirmationLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *TreasuryMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *TreasuryMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts and times requests under the given route label.
func (m *TreasuryMetrics) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			m.requests.WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).Inc()
			m.requestDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
