package contact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSent     = "sent"
	outcomeFailed   = "failed"
	outcomeInvalid  = "invalid"
	outcomeInFlight = "in_flight"
)

var submissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_contact_submissions_total",
		Help: "Contact form submissions by outcome (sent, failed, invalid, in_flight)",
	},
	[]string{"outcome"},
)
