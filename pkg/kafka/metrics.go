package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_published_total",
			Help: "Storefront events written to Kafka, by topic.",
		},
		[]string{"topic"},
	)

	eventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_event_publish_errors_total",
			Help: "Storefront events Kafka refused or timed out on, by topic.",
		},
		[]string{"topic"},
	)

	eventPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_event_publish_duration_seconds",
			Help:    "Time spent writing one storefront event to Kafka.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"topic"},
	)
)
