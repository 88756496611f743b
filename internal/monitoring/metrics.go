// Package monitoring exposes Prometheus metrics for the registration core.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"event_id", "outcome"},
	)

	cancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancellations_total",
			Help: "Registration cancellations",
		},
		[]string{"event_id"},
	)

	payouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payouts_total",
			Help: "Payout ledger appends",
		},
		[]string{"event_id"},
	)
)

// TrackRegistration counts one registration attempt and its outcome
// (success, capacity_exceeded, tier_sold_out, duplicate, …).
func TrackRegistration(eventID, outcome string) {
	registrations.WithLabelValues(eventID, outcome).Inc()
}

// TrackCancellation counts one cancellation.
func TrackCancellation(eventID string) {
	cancellations.WithLabelValues(eventID).Inc()
}

// TrackPayout counts one ledger append.
func TrackPayout(eventID string) {
	payouts.WithLabelValues(eventID).Inc()
}
