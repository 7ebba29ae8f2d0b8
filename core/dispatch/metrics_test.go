package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	// touch metrics so they are exported
	dispatchAttempts.WithLabelValues("HIGH", "success").Inc()
	dispatchLatency.Observe(0.1)
	reassignments.Inc()
	vehicleTransitions.WithLabelValues("assign").Inc()
	etaFailures.Inc()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[*mf.Name] = true
	}
	expected := []string{
		"dispatch_attempts_total",
		"dispatch_decision_seconds",
		"dispatch_reassignments_total",
		"vehicle_transitions_total",
		"eta_lookup_failures_total",
	}
	for _, n := range expected {
		if !names[n] {
			t.Errorf("metric %s not registered", n)
		}
	}
}
