package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the syncer's Prometheus collectors.
type Metrics struct {
	Relays          *prometheus.CounterVec
	Loads           *prometheus.CounterVec
	PersistFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Relays: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobops_relay_total",
				Help: "Relays sent to the remote mirror, by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		Loads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobops_load_total",
				Help: "Initial loads, by the source the collection came from",
			},
			[]string{"source"},
		),
		PersistFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "jobops_persist_failures_total",
				Help: "Failed writes of the collection to local storage",
			},
		),
	}
}
