package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_agent_lifecycle_transitions_total",
		Help: "Total worker lifecycle transitions by target state",
	}, []string{"state"})

	uncontrolledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_agent_uncontrolled_requests_total",
		Help: "Total requests passed to the origin before activation",
	})
)
