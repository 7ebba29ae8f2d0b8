package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchAttempts   *prometheus.CounterVec
	dispatchLatency    prometheus.Histogram
	reassignments      prometheus.Counter
	vehicleTransitions *prometheus.CounterVec
	etaFailures        prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Counter, *prometheus.CounterVec, prometheus.Counter) {
	att := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Dispatch decisions by outcome",
		},
		[]string{"priority", "outcome"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_decision_seconds",
			Help:    "Time to score and commit a dispatch",
			Buckets: prometheus.DefBuckets,
		},
	)
	re := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_reassignments_total",
			Help: "Dispatches re-scored because the chosen vehicle was taken concurrently",
		},
	)
	tr := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehicle_transitions_total",
			Help: "Vehicle lifecycle transitions by trigger",
		},
		[]string{"trigger"},
	)
	eta := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eta_lookup_failures_total",
			Help: "Routing provider lookups that failed or timed out",
		},
	)
	return att, lat, re, tr, eta
}

func init() {
	dispatchAttempts, dispatchLatency, reassignments, vehicleTransitions, etaFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchAttempts, dispatchLatency, reassignments, vehicleTransitions, etaFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchAttempts, dispatchLatency, reassignments, vehicleTransitions, etaFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
