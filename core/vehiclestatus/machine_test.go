package vehiclestatus

import (
	"errors"
	"testing"

	"github.com/kilianp07/ers/core/model"
)

func dest() model.Destination {
	return model.ToIncident(model.Point{Lat: 22.30, Lng: 73.18}, "HOSP001", model.Point{Lat: 22.31, Lng: 73.19}, 1)
}

func TestFullCycle(t *testing.T) {
	v := &model.Vehicle{ID: "AMB001", Status: model.StatusAvailable}
	if err := Assign(v, "inc1", dest()); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if v.Status != model.StatusDispatched || v.CurrentIncident != "inc1" || v.Destination.Kind != model.ToIncidentKind {
		t.Fatalf("unexpected vehicle after assign: %+v", v)
	}
	if err := ArriveAtScene(v); err != nil {
		t.Fatalf("arrive: %v", err)
	}
	if err := StartTransport(v); err != nil {
		t.Fatalf("transport: %v", err)
	}
	if v.Destination.Kind != model.ToHospitalKind || v.Destination.Point != (model.Point{Lat: 22.31, Lng: 73.19}) {
		t.Fatalf("destination not switched: %+v", v.Destination)
	}
	if err := ArriveAtHospital(v); err != nil {
		t.Fatalf("arrive hospital: %v", err)
	}
	released, err := Complete(v)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if released.HospitalID != "HOSP001" || released.LoadDelta != 1 {
		t.Fatalf("unexpected released destination %+v", released)
	}
	if err := v.CheckAssignment(); err != nil || v.Status != model.StatusAvailable {
		t.Fatalf("vehicle not freed: %+v %v", v, err)
	}
}

func TestInvalidTransitionReportsStatuses(t *testing.T) {
	v := &model.Vehicle{ID: "AMB002", Status: model.StatusAvailable}
	if err := Assign(v, "inc1", dest()); err != nil {
		t.Fatalf("assign: %v", err)
	}
	err := ArriveAtHospital(v)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError got %v", err)
	}
	if te.Current != model.StatusDispatched || te.Expected != model.StatusTransporting {
		t.Fatalf("unexpected statuses %+v", te)
	}
	if model.KindOf(err) != model.KindInvalidState {
		t.Fatalf("expected invalid_state kind")
	}
	if v.Status != model.StatusDispatched {
		t.Fatalf("status changed on failure")
	}
}

func TestCompleteTwiceFails(t *testing.T) {
	v := &model.Vehicle{ID: "AMB003", Status: model.StatusAvailable}
	if _, err := Complete(v); model.KindOf(err) != model.KindInvalidState {
		t.Fatalf("expected invalid_state got %v", err)
	}
}

func TestAssignRequiresAvailable(t *testing.T) {
	d := dest()
	v := &model.Vehicle{ID: "AMB004", Status: model.StatusTransporting, CurrentIncident: "x", Destination: &d}
	err := Assign(v, "inc2", dest())
	var te *TransitionError
	if !errors.As(err, &te) || te.Expected != model.StatusAvailable {
		t.Fatalf("expected transition error got %v", err)
	}
	if v.CurrentIncident != "x" {
		t.Fatalf("assignment overwritten")
	}
}

func TestAssignRejectsPartialDestination(t *testing.T) {
	v := &model.Vehicle{ID: "AMB005", Status: model.StatusAvailable}
	err := Assign(v, "inc1", model.Destination{Kind: model.ToIncidentKind, Point: model.Point{Lat: 1, Lng: 1}})
	if model.KindOf(err) != model.KindValidation {
		t.Fatalf("expected validation error got %v", err)
	}
	if v.Status != model.StatusAvailable {
		t.Fatalf("vehicle mutated")
	}
}

func TestResetFromAnyAssignedStatus(t *testing.T) {
	for _, s := range []model.VehicleStatus{model.StatusDispatched, model.StatusArrivedAtEmergency, model.StatusTransporting, model.StatusArrivedAtHospital} {
		d := dest()
		v := &model.Vehicle{ID: "AMB006", Status: s, CurrentIncident: "i", Destination: &d}
		if _, err := Reset(v); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		if v.CheckAssignment() != nil || v.Status != model.StatusAvailable {
			t.Fatalf("%s: not reset", s)
		}
	}
	if _, err := Reset(&model.Vehicle{ID: "AMB007", Status: model.StatusAvailable}); err == nil {
		t.Fatalf("expected reset of available vehicle to fail")
	}
}

func TestAdvanceIncident(t *testing.T) {
	inc := &model.Incident{ID: "i", Status: model.IncidentPending}
	if err := AdvanceIncident(inc, model.IncidentDispatched); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := AdvanceIncident(inc, model.IncidentDispatched); err == nil {
		t.Fatalf("expected repeat to fail")
	}
	inc.AssignedVehicle = "AMB001"
	if err := AdvanceIncident(inc, model.IncidentPending); err != nil || inc.AssignedVehicle != "" {
		t.Fatalf("reset failed: %v", err)
	}
	inc.Status = model.IncidentResolved
	if err := AdvanceIncident(inc, model.IncidentTransporting); err == nil {
		t.Fatalf("expected backwards move to fail")
	}
}

func TestIncidentStatusFor(t *testing.T) {
	if IncidentStatusFor(model.StatusTransporting) != model.IncidentTransporting {
		t.Fatalf("mapping broken")
	}
	if IncidentStatusFor(model.StatusAvailable) != model.IncidentResolved {
		t.Fatalf("completion should resolve the incident")
	}
}
