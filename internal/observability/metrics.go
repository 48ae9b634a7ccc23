package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion and lookup.
type Metrics struct {
	// Source client metrics.
	SourceRequests *prometheus.CounterVec   // labels: endpoint={archive,forecast}, outcome={success,invalid,retry,unavailable,circuit_open}
	SourceRetries  *prometheus.CounterVec   // labels: endpoint
	SourceDuration *prometheus.HistogramVec // labels: endpoint
	SourceDefaults prometheus.Counter

	// Partition store metrics.
	PartitionWrites  *prometheus.CounterVec // labels: outcome={success,error}
	PartitionBytes   prometheus.Counter
	PartitionQueries *prometheus.CounterVec // labels: outcome={hit,not_found,catalog_unavailable}
	QueryDuration    prometheus.Histogram

	// Ingestion metrics.
	IngestUnits      *prometheus.CounterVec // labels: mode={daily,backfill}, outcome={success,failure}
	IngestRunning    prometheus.Gauge
	RunDuration      *prometheus.HistogramVec // labels: mode
	QualityIssues    *prometheus.CounterVec   // labels: check
	EventPublishErrs prometheus.Counter

	// Lookup metrics.
	LookupSlots *prometheus.CounterVec // labels: origin={store,fallback,unavailable}
	Fallbacks   *prometheus.CounterVec // labels: reason={not_found,catalog_unavailable}
}

func newMetrics() *Metrics {
	return &Metrics{
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Weather source requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		SourceRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_retries_total",
			Help:      "Weather source attempts that were retried.",
		}, []string{"endpoint"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_attempt_duration_seconds",
			Help:      "Duration of a single weather source HTTP attempt.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		SourceDefaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_defaulted_values_total",
			Help:      "Missing source values replaced by their defaults.",
		}),
		PartitionWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_writes_total",
			Help:      "Partition artifact writes by outcome.",
		}, []string{"outcome"}),
		PartitionBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_bytes_written_total",
			Help:      "Bytes of Parquet uploaded to the object store.",
		}),
		PartitionQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_queries_total",
			Help:      "Partition store queries by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_query_duration_seconds",
			Help:      "Duration of a partition store query.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		IngestUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_units_total",
			Help:      "Ingestion units (location, day) by run mode and outcome.",
		}, []string{"mode", "outcome"}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_running",
			Help:      "Number of ingestion runs in progress.",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Duration of a complete daily or backfill run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 3600},
		}, []string{"mode"}),
		QualityIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_issues_total",
			Help:      "Data quality issues found in fetched batches by check.",
		}, []string{"check"}),
		EventPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Ingestion events that could not be published.",
		}),
		LookupSlots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_slots_total",
			Help:      "Resolved historical lookup slots by origin.",
		}, []string{"origin"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_fallbacks_total",
			Help:      "Historical lookups that fell back to the live source, by reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SourceRequests,
		m.SourceRetries,
		m.SourceDuration,
		m.SourceDefaults,
		m.PartitionWrites,
		m.PartitionBytes,
		m.PartitionQueries,
		m.QueryDuration,
		m.IngestUnits,
		m.IngestRunning,
		m.RunDuration,
		m.QualityIssues,
		m.EventPublishErrs,
		m.LookupSlots,
		m.Fallbacks,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
