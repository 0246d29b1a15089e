package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// detection pipeline.
type Metrics struct {
	ScanRunning      prometheus.Gauge
	ScanCycles       prometheus.Counter
	ScanErrors       prometheus.Counter
	ScanDuration     prometheus.Histogram
	EventsPersisted  prometheus.Counter
	AlertsPublished  prometheus.Counter
	RecordsPurged    prometheus.Counter

	// Feed metrics.
	FeedRequests    *prometheus.CounterVec // labels: source, outcome={success,error,empty}
	FeedRowsParsed  prometheus.Counter
	FeedRowsSkipped prometheus.Counter
	FeedDuration    *prometheus.HistogramVec // labels: source

	// Imagery metrics.
	ImageryFetches  *prometheus.CounterVec // labels: layer, outcome={success,error,empty}
	ImageryCache    *prometheus.CounterVec // labels: result={hit,miss}
	ImageryDuration prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		ScanRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "firewatch",
			Name:      "scan_running",
			Help:      "1 when the scan loop is active, 0 when shut down.",
		}),
		ScanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "scan_cycles_total",
			Help:      "Total completed region scan cycles.",
		}),
		ScanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "scan_errors_total",
			Help:      "Total scan cycles that failed.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "scan_duration_seconds",
			Help:      "Duration of a complete fetch-classify-persist cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		EventsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "events_persisted_total",
			Help:      "Total detections written to the history store.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "alerts_published_total",
			Help:      "Total high-confidence detections published to the alert topic.",
		}),
		RecordsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "records_purged_total",
			Help:      "Total history records removed by retention purges.",
		}),
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "feed_requests_total",
			Help:      "FIRMS area requests by source and outcome.",
		}, []string{"source", "outcome"}),
		FeedRowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "feed_rows_parsed_total",
			Help:      "Feed rows successfully parsed into detections.",
		}),
		FeedRowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "feed_rows_skipped_total",
			Help:      "Malformed feed rows skipped during parsing.",
		}),
		FeedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "feed_request_duration_seconds",
			Help:      "FIRMS area request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		ImageryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "imagery_fetches_total",
			Help:      "Imagery layer fetch attempts by layer and outcome.",
		}, []string{"layer", "outcome"}),
		ImageryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "imagery_cache_total",
			Help:      "Imagery cache lookups by result.",
		}, []string{"result"}),
		ImageryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "imagery_fetch_duration_seconds",
			Help:      "Imagery fetch duration in seconds, including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ScanRunning,
		m.ScanCycles,
		m.ScanErrors,
		m.ScanDuration,
		m.EventsPersisted,
		m.AlertsPublished,
		m.RecordsPurged,
		m.FeedRequests,
		m.FeedRowsParsed,
		m.FeedRowsSkipped,
		m.FeedDuration,
		m.ImageryFetches,
		m.ImageryCache,
		m.ImageryDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
