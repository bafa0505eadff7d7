// Package metrics provides observability for the run engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the run engine.
type Metrics struct {
	// Engine step latencies by action kind
	StepLatency *prometheus.HistogramVec

	// Verification check outcomes by type and outcome
	CheckOutcome *prometheus.CounterVec

	// Run terminations by final status
	RunOutcome *prometheus.CounterVec

	// Runs currently being driven by the engine
	ActiveRuns prometheus.Gauge

	// Final risk scores
	RiskScore prometheus.Histogram
}

// New creates a new Metrics instance with all run engine metrics registered.
func New() *Metrics {
	return &Metrics{
		StepLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provenance_run_step_duration_seconds",
			Help:    "Duration of engine steps by action kind",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"action"}),

		CheckOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_run_check_outcomes_total",
			Help: "Total verification check outcomes by type and outcome",
		}, []string{"type", "outcome"}), // outcome: "verified", "unverified", "error"

		RunOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_run_outcomes_total",
			Help: "Total run terminations by final status",
		}, []string{"status"}),

		ActiveRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "provenance_run_active",
			Help: "Runs currently being driven by the engine",
		}),

		RiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "provenance_run_risk_score",
			Help:    "Final risk scores across completed runs",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 85, 100, 120},
		}),
	}
}

// ObserveStepLatency records the duration of one engine step.
func (m *Metrics) ObserveStepLatency(action string, d time.Duration) {
	if m != nil {
		m.StepLatency.WithLabelValues(action).Observe(d.Seconds())
	}
}

// IncrementCheckOutcome records a verification check outcome.
func (m *Metrics) IncrementCheckOutcome(verificationType, outcome string) {
	if m != nil {
		m.CheckOutcome.WithLabelValues(verificationType, outcome).Inc()
	}
}

// IncrementRunOutcome records a run reaching a terminal status.
func (m *Metrics) IncrementRunOutcome(status string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(status).Inc()
	}
}

// RunStarted marks a run as actively driven.
func (m *Metrics) RunStarted() {
	if m != nil {
		m.ActiveRuns.Inc()
	}
}

// RunParked marks a run as no longer actively driven.
func (m *Metrics) RunParked() {
	if m != nil {
		m.ActiveRuns.Dec()
	}
}

// ObserveRiskScore records the final score of a completed run.
func (m *Metrics) ObserveRiskScore(score int) {
	if m != nil {
		m.RiskScore.Observe(float64(score))
	}
}
