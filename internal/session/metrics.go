package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_sessions_active",
		Help: "Page activations currently held in memory",
	})

	sessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_sessions_ended_total",
			Help: "Page activations torn down, by reason (deleted, expired)",
		},
		[]string{"reason"},
	)
)
