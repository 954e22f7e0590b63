package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "langsearch_search_requests_total",
		Help: "Completed search requests.",
	})

	searchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "langsearch_search_failures_total",
		Help: "Search requests that failed against the index backend.",
	})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "langsearch_search_duration_seconds",
		Help:    "End-to-end search latency including hydration.",
		Buckets: prometheus.DefBuckets,
	})
)
