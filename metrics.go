package pubfeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// feedMetrics are the feed-specific collectors. Request counts and latencies
// come from the echoprometheus middleware.
type feedMetrics struct {
	upstreamFailures prometheus.Counter
	entries          prometheus.Gauge
	generateSeconds  prometheus.Histogram
}

func newFeedMetrics(reg prometheus.Registerer) *feedMetrics {
	m := &feedMetrics{
		upstreamFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubfeed",
			Name:      "upstream_failures_total",
			Help:      "Post source failures that were served as an empty feed.",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pubfeed",
			Name:      "feed_entries",
			Help:      "Number of entries in the most recently generated feed.",
		}),
		generateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pubfeed",
			Name:      "generate_duration_seconds",
			Help:      "Time spent assembling the feed document.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	reg.MustRegister(
		m.upstreamFailures,
		m.entries,
		m.generateSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
