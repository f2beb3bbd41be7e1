package trigger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	triggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_sync_triggers_total",
		Help: "Total sync triggers by source and result",
	}, []string{"source", "result"}) // started, coalesced, ignored, closed

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_sync_retries_total",
		Help: "Total number of replay retries by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offline_sync_retry_backoff_seconds",
		Help:    "Backoff duration before replay retries by error class",
		Buckets: []float64{1, 5, 10, 20, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_sync_retry_exhausted_total",
		Help: "Total number of times replay retries were exhausted by error class",
	}, []string{"error_class"})
)
