package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Interception outcomes, one per terminal state of a request.
const (
	OutcomePassThrough  = "pass_through"
	OutcomeHit          = "cache_hit"
	OutcomeStored       = "network_stored"
	OutcomeNetwork      = "network_uncached"
	OutcomeFallback     = "offline_fallback"
	OutcomeFallbackMiss = "offline_fallback_miss"
)

var (
	interceptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_gateway_requests_total",
		Help: "Total intercepted requests by outcome",
	}, []string{"outcome"})

	interceptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offline_gateway_request_duration_seconds",
		Help:    "Interception duration in seconds by outcome",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
	}, []string{"outcome"})

	installTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_gateway_installs_total",
		Help: "Total install attempts by result",
	}, []string{"result"})

	seedFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_gateway_seed_fetches_total",
		Help: "Total seed resource fetches by result",
	}, []string{"result"})
)
