package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ingestion module.
type Metrics struct {
	SnapshotsPublished prometheus.Counter
	EntriesIngested    prometheus.Counter
	RecordsCollapsed   prometheus.Counter
	IngestFailures     *prometheus.CounterVec
	IngestDuration     prometheus.Histogram
}

// New creates a Metrics instance with all ingestion metrics registered.
func New() *Metrics {
	return &Metrics{
		SnapshotsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listscreen_snapshots_published_total",
			Help: "Total watchlist snapshots published",
		}),
		EntriesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listscreen_watchlist_entries_ingested_total",
			Help: "Total deduplicated entries across all published snapshots",
		}),
		RecordsCollapsed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listscreen_watchlist_records_collapsed_total",
			Help: "Raw records merged into an existing entry during deduplication",
		}),
		IngestFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "listscreen_ingest_failures_total",
			Help: "Ingestion failures by kind",
		}, []string{"kind"}), // kind: "empty_source", "below_minimum", "source_unreachable", "store"
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "listscreen_ingest_duration_seconds",
			Help:    "Duration of a full ingestion including publish",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObserveIngest records the duration of a successful ingestion.
func (m *Metrics) ObserveIngest(d time.Duration) {
	if m != nil {
		m.IngestDuration.Observe(d.Seconds())
	}
}

// IncrementFailure records an ingestion failure by kind.
func (m *Metrics) IncrementFailure(kind string) {
	if m != nil {
		m.IngestFailures.WithLabelValues(kind).Inc()
	}
}

// AddEntries records the entry count of a published snapshot.
func (m *Metrics) AddEntries(n int) {
	if m != nil {
		m.EntriesIngested.Add(float64(n))
	}
}

// AddCollapsed records raw records merged away by deduplication.
func (m *Metrics) AddCollapsed(n int) {
	if m != nil {
		m.RecordsCollapsed.Add(float64(n))
	}
}

// IncrementPublished records one published snapshot.
func (m *Metrics) IncrementPublished() {
	if m != nil {
		m.SnapshotsPublished.Inc()
	}
}
