package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the sync pipeline.
type Metrics struct {
	SyncCycles   prometheus.Counter
	SyncRunning  prometheus.Gauge
	SyncDuration prometheus.Histogram

	// Connector metrics.
	ConnectorFetches  *prometheus.CounterVec // labels: source, outcome={success,error}
	CandidatesFetched *prometheus.CounterVec // labels: source
	IncidentsMerged   prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	IncidentsResolved prometheus.Counter
	IncidentStoreSize prometheus.Gauge
	PersistenceErrors prometheus.Counter

	// Triage oracle metrics.
	TriageRequests *prometheus.CounterVec // labels: verdict={clean,repaired,fallback}
	TriageCache    *prometheus.CounterVec // labels: result={hit,miss}
	TriageDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SyncCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feed_sync",
			Name:      "cycles_total",
			Help:      "Total sync cycles started.",
		}),
		SyncRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "feed_sync",
			Name:      "running",
			Help:      "1 while a sync cycle is in flight, 0 otherwise.",
		}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "feed_sync",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fan-out fetch and merge cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ConnectorFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feed_sync",
			Name:      "connector_fetches_total",
			Help:      "Connector fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		CandidatesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feed_sync",
			Name:      "candidates_total",
			Help:      "Relevant incident candidates produced per source.",
		}, []string{"source"}),
		IncidentsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feed_sync",
			Name:      "incidents_merged_total",
			Help:      "New incidents inserted into the store.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feed_sync",
			Name:      "duplicates_skipped_total",
			Help:      "Merge candidates skipped because their ID already existed.",
		}),
		IncidentsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feed_sync",
			Name:      "incidents_resolved_total",
			Help:      "Incidents removed through the resolution transaction.",
		}),
		IncidentStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "feed_sync",
			Name:      "incident_store_size",
			Help:      "Current number of incidents held in the store.",
		}),
		PersistenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feed_sync",
			Name:      "persistence_errors_total",
			Help:      "Blob store writes that failed and were swallowed.",
		}),
		TriageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feed_sync",
			Name:      "triage_requests_total",
			Help:      "Triage oracle calls by verdict.",
		}, []string{"verdict"}),
		TriageCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feed_sync",
			Name:      "triage_cache_total",
			Help:      "Classification cache lookups by result.",
		}, []string{"result"}),
		TriageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "feed_sync",
			Name:      "triage_duration_seconds",
			Help:      "Triage oracle request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
	}

	prometheus.MustRegister(
		m.SyncCycles,
		m.SyncRunning,
		m.SyncDuration,
		m.ConnectorFetches,
		m.CandidatesFetched,
		m.IncidentsMerged,
		m.DuplicatesSkipped,
		m.IncidentsResolved,
		m.IncidentStoreSize,
		m.PersistenceErrors,
		m.TriageRequests,
		m.TriageCache,
		m.TriageDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SyncCycles:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "feed_sync", Name: "cycles_total"}),
		SyncRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "feed_sync", Name: "running"}),
		SyncDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "feed_sync", Name: "cycle_duration_seconds"}),
		ConnectorFetches:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "feed_sync", Name: "connector_fetches_total"}, []string{"source", "outcome"}),
		CandidatesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "feed_sync", Name: "candidates_total"}, []string{"source"}),
		IncidentsMerged:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "feed_sync", Name: "incidents_merged_total"}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "feed_sync", Name: "duplicates_skipped_total"}),
		IncidentsResolved: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "feed_sync", Name: "incidents_resolved_total"}),
		IncidentStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "feed_sync", Name: "incident_store_size"}),
		PersistenceErrors: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "feed_sync", Name: "persistence_errors_total"}),
		TriageRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "feed_sync", Name: "triage_requests_total"}, []string{"verdict"}),
		TriageCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "feed_sync", Name: "triage_cache_total"}, []string{"result"}),
		TriageDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "feed_sync", Name: "triage_duration_seconds"}),
	}
}
