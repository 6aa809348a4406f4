package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "serilog_dashboard"

// Metrics holds the service collectors
type Metrics struct {
	EventsIngested   prometheus.Counter
	LinesSkipped     prometheus.Counter
	EventsDropped    prometheus.Counter
	IngestRequests   *prometheus.CounterVec
	QueryRequests    *prometheus.CounterVec
	QueryDuration    prometheus.Histogram
	AppendBatchSizes prometheus.Histogram
}

// New registers the collectors on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		EventsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Events written to the log store.",
		}),
		LinesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clef_lines_skipped_total",
			Help:      "CLEF lines or array elements that were not valid JSON objects.",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Decoded CLEF records rejected by normalization.",
		}),
		IngestRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_requests_total",
			Help:      "Raw event ingestion requests by HTTP status.",
		}, []string{"status"}),
		QueryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      "Log search requests by HTTP status.",
		}, []string{"status"}),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time spent answering log searches.",
			Buckets:   prometheus.DefBuckets,
		}),
		AppendBatchSizes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "append_batch_size",
			Help:      "Events per store append call.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}
