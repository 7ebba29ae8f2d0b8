package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/ers/core/metrics"
	"github.com/kilianp07/ers/core/model"
)

func TestPromSink_RecordDispatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	now := time.Now()
	if err := sink.RecordDispatch(coremetrics.DispatchEvent{IncidentID: "i1", HospitalID: "HOSP001", Category: "accident", VehicleToSceneKm: 1.2, HospitalScore: 80, Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := sink.RecordDispatch(coremetrics.DispatchEvent{IncidentID: "i2", ErrorKind: "no_capacity", Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}

	expected := `
# HELP ers_dispatch_events_total Dispatch decisions by hospital and outcome
# TYPE ers_dispatch_events_total counter
ers_dispatch_events_total{category="accident",hospital_id="HOSP001",outcome="success"} 1
ers_dispatch_events_total{category="uncategorized",hospital_id="",outcome="no_capacity"} 1
`
	if err := testutil.CollectAndCompare(sink.dispatches, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	// failed decisions are not observed
	if c := testutil.CollectAndCount(sink.distance); c != 1 {
		t.Errorf("distance histogram series = %d", c)
	}
}

func TestPromSink_Lifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	_ = sink.RecordHospitalLoad(coremetrics.HospitalLoadEvent{HospitalID: "HOSP001", Load: 12})
	_ = sink.RecordHospitalLoad(coremetrics.HospitalLoadEvent{HospitalID: "HOSP001", Load: 11})
	_ = sink.RecordVehicleState(coremetrics.VehicleStateEvent{VehicleID: "AMB001", Status: model.StatusDispatched})
	_ = sink.RecordIncidentStatus(coremetrics.IncidentStatusEvent{IncidentID: "i1", To: model.IncidentResolved})

	if v := testutil.ToFloat64(sink.load.WithLabelValues("HOSP001")); v != 11 {
		t.Fatalf("load gauge = %v", v)
	}
	if v := testutil.ToFloat64(sink.vehicles.WithLabelValues("dispatched")); v != 1 {
		t.Fatalf("vehicle counter = %v", v)
	}
	if v := testutil.ToFloat64(sink.incidents.WithLabelValues("resolved")); v != 1 {
		t.Fatalf("incident counter = %v", v)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	_ = a.RecordHospitalLoad(coremetrics.HospitalLoadEvent{HospitalID: "h", Load: 5})
	if v := testutil.ToFloat64(b.load.WithLabelValues("h")); v != 5 {
		t.Fatalf("collectors not shared: %v", v)
	}
}
