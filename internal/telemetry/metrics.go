package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency for every endpoint.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "nightwatch",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// SamplesIngestedTotal counts accepted/rejected samples across all ingest batches.
var SamplesIngestedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "nightwatch",
		Subsystem: "ingest",
		Name:      "samples_total",
		Help:      "Total number of metric samples processed, by outcome.",
	},
	[]string{"outcome"}, // accepted, rejected (kind mismatches count as rejected)
)

// SeriesCreatedTotal counts newly discovered series.
var SeriesCreatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "nightwatch",
		Subsystem: "ingest",
		Name:      "series_created_total",
		Help:      "Total number of metric series discovered on first sample.",
	},
)

// LogEntriesIngestedTotal counts accepted log entries by source.
var LogEntriesIngestedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "nightwatch",
		Subsystem: "ingest",
		Name:      "log_entries_total",
		Help:      "Total number of log entries ingested, by source.",
	},
	[]string{"source"},
)

// QueryDuration tracks query-engine latency by family.
var QueryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "nightwatch",
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "Query engine latency in seconds, by query family.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"family"}, // latest, timeseries, rate, fraction
)

// CommandsTotal counts command-plane transitions by resulting status.
var CommandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "nightwatch",
		Subsystem: "commands",
		Name:      "total",
		Help:      "Total number of commands by terminal or transitional status.",
	},
	[]string{"status"},
)

// RetentionSweepDuration tracks how long each retention sweep tick takes.
var RetentionSweepDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "nightwatch",
		Subsystem: "retention",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of each retention sweep tick.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	},
)

// RetentionRowsDeletedTotal counts rows removed by the retention sweep, by table.
var RetentionRowsDeletedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "nightwatch",
		Subsystem: "retention",
		Name:      "rows_deleted_total",
		Help:      "Total number of rows deleted by the retention sweep, by table.",
	},
	[]string{"table"},
)

// AuthFailuresTotal counts authentication failures by reason.
var AuthFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "nightwatch",
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Total number of authentication failures, by reason.",
	},
	[]string{"reason"},
)

// NewRegistry creates a Prometheus registry with Go/process collectors and
// every nightwatch-specific collector.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
		SamplesIngestedTotal,
		SeriesCreatedTotal,
		LogEntriesIngestedTotal,
		QueryDuration,
		CommandsTotal,
		RetentionSweepDuration,
		RetentionRowsDeletedTotal,
		AuthFailuresTotal,
	)
	return reg
}
