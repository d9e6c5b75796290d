package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_loads_total",
			Help: "Catalog loads by outcome (loaded, failed)",
		},
		[]string{"outcome"},
	)

	loadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_catalog_load_duration_seconds",
			Help:    "Duration of backend catalog fetches",
			Buckets: prometheus.DefBuckets,
		},
	)
)
