package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "langsearch_index_operations_total",
		Help: "Index write operations by operation and logical index.",
	}, []string{"operation", "index"})

	indexFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "langsearch_index_failures_total",
		Help: "Failed index write operations by operation and logical index.",
	}, []string{"operation", "index"})

	rebuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "langsearch_index_rebuild_seconds",
		Help:    "Wall time of full index rebuilds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"index"})
)
