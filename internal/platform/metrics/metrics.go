package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	RecordsClassified *prometheus.CounterVec
	ParseFailures     *prometheus.CounterVec
	UnmappedColumns   prometheus.Counter
	FilesIngested     prometheus.Counter
	FileDuration      prometheus.Histogram
	ResolverDuration  *prometheus.HistogramVec
	AuditEvents       prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RecordsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnigest_records_classified_total",
			Help: "Records classified by ingest status and reason",
		}, []string{"status", "reason"}),
		ParseFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "omnigest_parse_failures_total",
			Help: "Per-file parse failures by format and kind",
		}, []string{"format", "kind"}),
		UnmappedColumns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnigest_unmapped_columns_total",
			Help: "Input columns preserved as UNMAPPED passthrough",
		}),
		FilesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnigest_files_ingested_total",
			Help: "Files successfully parsed and evaluated",
		}),
		FileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnigest_file_duration_seconds",
			Help:    "End-to-end duration of a single file ingest",
			Buckets: prometheus.DefBuckets,
		}),
		ResolverDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omnigest_resolver_duration_seconds",
			Help:    "Identity resolution latency by source",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		AuditEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "omnigest_audit_events_total",
			Help: "Audit events appended",
		}),
	}
}

// IncClassified increments the classification counter for one record.
func (m *Metrics) IncClassified(status, reason string) {
	if m == nil {
		return
	}
	m.RecordsClassified.WithLabelValues(status, reason).Inc()
}

// IncParseFailure increments the per-file parse failure counter.
func (m *Metrics) IncParseFailure(format, kind string) {
	if m == nil {
		return
	}
	m.ParseFailures.WithLabelValues(format, kind).Inc()
}

// ObserveResolver records identity resolution latency for a source.
func (m *Metrics) ObserveResolver(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolverDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveFile records the end-to-end duration of one file ingest and counts it.
func (m *Metrics) ObserveFile(d time.Duration) {
	if m == nil {
		return
	}
	m.FilesIngested.Inc()
	m.FileDuration.Observe(d.Seconds())
}

// AddUnmappedColumns counts passthrough columns preserved on a record.
func (m *Metrics) AddUnmappedColumns(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.UnmappedColumns.Add(float64(n))
}

// IncAuditEvent counts one appended audit event.
func (m *Metrics) IncAuditEvent() {
	if m == nil {
		return
	}
	m.AuditEvents.Inc()
}
