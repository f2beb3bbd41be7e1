package pending

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_pending_enqueued_total",
		Help: "Total number of records added to the pending queue",
	})

	uploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_pending_uploaded_total",
		Help: "Total number of records uploaded and removed from the queue",
	})

	replayTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_pending_replay_total",
		Help: "Total number of replay runs by result",
	}, []string{"result"}) // complete, upload_failed, store_failed

	recordsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offline_pending_records",
		Help: "Number of records currently queued",
	})
)
