package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the scoring module.
type Metrics struct {
	CustomersScreened *prometheus.CounterVec
	RunOutcome        *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	ScreenDuration    prometheus.Histogram
}

// New creates a Metrics instance with all scoring metrics registered.
func New() *Metrics {
	return &Metrics{
		CustomersScreened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "listscreen_customers_screened_total",
			Help: "Per-customer scoring outcomes",
		}, []string{"outcome"}), // outcome: "inserted", "already_scored", "failed"

		RunOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "listscreen_score_runs_total",
			Help: "Score run terminal states",
		}, []string{"state"}),

		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "listscreen_score_run_duration_seconds",
			Help:    "Duration of a full score run",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		}),

		ScreenDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "listscreen_screen_duration_seconds",
			Help:    "Duration of a single customer screening including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// IncrementScreened records one per-customer outcome.
func (m *Metrics) IncrementScreened(outcome string) {
	if m != nil {
		m.CustomersScreened.WithLabelValues(outcome).Inc()
	}
}

// IncrementRunOutcome records a run reaching a terminal state.
func (m *Metrics) IncrementRunOutcome(state string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(state).Inc()
	}
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}

// ObserveScreen records one customer screening duration.
func (m *Metrics) ObserveScreen(d time.Duration) {
	if m != nil {
		m.ScreenDuration.Observe(d.Seconds())
	}
}
