// Package metrics provides Prometheus metrics for the HTTP transport.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transport-level Prometheus metrics. Engine metrics live
// in internal/run/metrics; this package covers the HTTP edge only.
type Metrics struct {
	// Request latencies by route pattern, method and status code
	RequestLatency *prometheus.HistogramVec

	// Requests currently being served
	RequestsInFlight prometheus.Gauge

	// Reviewer login attempts by outcome
	ReviewerLogins *prometheus.CounterVec
}

// New creates and registers all transport metrics.
func New() *Metrics {
	return &Metrics{
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provenance_http_request_duration_seconds",
			Help:    "HTTP request duration by route, method and status code",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method", "code"}),

		RequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "provenance_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),

		ReviewerLogins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_reviewer_logins_total",
			Help: "Reviewer login attempts by outcome",
		}, []string{"outcome"}), // outcome: "success", "bad_credentials", "error"
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(route, method, strconv.Itoa(code)).Observe(d.Seconds())
	}
}

// RequestStarted marks a request as in flight.
func (m *Metrics) RequestStarted() {
	if m != nil {
		m.RequestsInFlight.Inc()
	}
}

// RequestFinished marks a request as no longer in flight.
func (m *Metrics) RequestFinished() {
	if m != nil {
		m.RequestsInFlight.Dec()
	}
}

// IncrementReviewerLogin records a login attempt outcome.
func (m *Metrics) IncrementReviewerLogin(outcome string) {
	if m != nil {
		m.ReviewerLogins.WithLabelValues(outcome).Inc()
	}
}
