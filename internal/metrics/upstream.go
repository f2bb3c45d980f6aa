package metrics

import "github.com/prometheus/client_golang/prometheus"

// Upstream service Prometheus metrics.
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream service requests",
		},
		[]string{"service", "op", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragcore",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "op"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IngestLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Name:      "ingest_lines_total",
			Help:      "Ingested JSONL lines by outcome",
		},
		[]string{"outcome"}, // "ok" / "failed"
	)
)

var upstreamMetricsRegistered bool

// RegisterUpstreamMetrics registers the upstream metrics. Must be called once from main.
func RegisterUpstreamMetrics() {
	if upstreamMetricsRegistered {
		return
	}
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(IngestLinesTotal)
	upstreamMetricsRegistered = true
}

// ObserveUpstream records one upstream round-trip.
func ObserveUpstream(service, op, status string, seconds float64) {
	UpstreamRequestsTotal.WithLabelValues(service, op, status).Inc()
	UpstreamRequestDuration.WithLabelValues(service, op).Observe(seconds)
}
