// Package vehiclestatus holds the ambulance lifecycle: the legal status
// transitions and the side effects each one has on the vehicle and incident
// records. Functions here mutate values only; persisting them is the
// caller's job.
package vehiclestatus

import (
	"fmt"

	"github.com/kilianp07/ers/core/model"
)

// Trigger is an action that moves a vehicle between statuses.
type Trigger string

const (
	TriggerAssign         Trigger = "assign"
	TriggerArriveScene    Trigger = "arrive_scene"
	TriggerStartTransport Trigger = "start_transport"
	TriggerArriveHospital Trigger = "arrive_hospital"
	TriggerComplete       Trigger = "complete"
	TriggerReset          Trigger = "reset"
)

type edge struct {
	from model.VehicleStatus
	to   model.VehicleStatus
}

var transitions = map[Trigger]edge{
	TriggerAssign:         {model.StatusAvailable, model.StatusDispatched},
	TriggerArriveScene:    {model.StatusDispatched, model.StatusArrivedAtEmergency},
	TriggerStartTransport: {model.StatusArrivedAtEmergency, model.StatusTransporting},
	TriggerArriveHospital: {model.StatusTransporting, model.StatusArrivedAtHospital},
	TriggerComplete:       {model.StatusArrivedAtHospital, model.StatusAvailable},
}

// incidentFor maps the vehicle status reached by a trigger to the incident
// status it implies.
var incidentFor = map[model.VehicleStatus]model.IncidentStatus{
	model.StatusDispatched:         model.IncidentDispatched,
	model.StatusArrivedAtEmergency: model.IncidentArrivedAtEmergency,
	model.StatusTransporting:       model.IncidentTransporting,
	model.StatusArrivedAtHospital:  model.IncidentArrivedAtHospital,
	model.StatusAvailable:          model.IncidentResolved,
}

// TransitionError is returned when a trigger does not apply to the current
// status.
type TransitionError struct {
	VehicleID string
	Trigger   Trigger
	Current   model.VehicleStatus
	Expected  model.VehicleStatus
}

func (e *TransitionError) Error() string {
	if e.Trigger == TriggerReset {
		return fmt.Sprintf("vehicle %s: cannot %s: status is %s", e.VehicleID, e.Trigger, e.Current)
	}
	return fmt.Sprintf("vehicle %s: cannot %s: status is %s, expected %s", e.VehicleID, e.Trigger, e.Current, e.Expected)
}

// ErrorKind reports the error as an invalid state.
func (e *TransitionError) ErrorKind() model.ErrorKind { return model.KindInvalidState }

// Expected returns the status a trigger must start from. Reset has no
// single predecessor and returns "".
func Expected(t Trigger) model.VehicleStatus {
	return transitions[t].from
}

// Next returns the status reached by applying t to current.
func Next(vehicleID string, current model.VehicleStatus, t Trigger) (model.VehicleStatus, error) {
	if t == TriggerReset {
		if current == model.StatusAvailable {
			return current, &TransitionError{VehicleID: vehicleID, Trigger: t, Current: current}
		}
		return model.StatusAvailable, nil
	}
	e, ok := transitions[t]
	if !ok {
		return current, fmt.Errorf("vehiclestatus: unknown trigger %q", t)
	}
	if current != e.from {
		return current, &TransitionError{VehicleID: vehicleID, Trigger: t, Current: current, Expected: e.from}
	}
	return e.to, nil
}

// IncidentStatusFor returns the incident status matching a vehicle status.
func IncidentStatusFor(s model.VehicleStatus) model.IncidentStatus {
	return incidentFor[s]
}

// Assign moves an available vehicle to dispatched toward dest.
func Assign(v *model.Vehicle, incidentID string, dest model.Destination) error {
	if incidentID == "" {
		return model.Validation("assign: empty incident id")
	}
	if err := dest.Validate(); err != nil {
		return fmt.Errorf("assign %s: %w", v.ID, err)
	}
	if dest.Kind != model.ToIncidentKind {
		return model.Validation("assign: first leg must target the incident")
	}
	next, err := Next(v.ID, v.Status, TriggerAssign)
	if err != nil {
		return err
	}
	v.Status = next
	v.CurrentIncident = incidentID
	v.Destination = &dest
	return nil
}

// ArriveAtScene records arrival at the incident.
func ArriveAtScene(v *model.Vehicle) error {
	return step(v, TriggerArriveScene)
}

// StartTransport switches the destination to the hospital leg.
func StartTransport(v *model.Vehicle) error {
	if err := step(v, TriggerStartTransport); err != nil {
		return err
	}
	d := v.Destination.ToHospital()
	v.Destination = &d
	return nil
}

// ArriveAtHospital records arrival at the receiving hospital.
func ArriveAtHospital(v *model.Vehicle) error {
	return step(v, TriggerArriveHospital)
}

// Complete frees the vehicle and returns the destination it released so the
// caller can undo the hospital load.
func Complete(v *model.Vehicle) (model.Destination, error) {
	if err := step(v, TriggerComplete); err != nil {
		return model.Destination{}, err
	}
	return release(v), nil
}

// Reset returns any assigned vehicle to available.
func Reset(v *model.Vehicle) (model.Destination, error) {
	next, err := Next(v.ID, v.Status, TriggerReset)
	if err != nil {
		return model.Destination{}, err
	}
	v.Status = next
	return release(v), nil
}

func step(v *model.Vehicle, t Trigger) error {
	if v.Destination == nil || v.CurrentIncident == "" {
		if v.Status == model.StatusAvailable {
			return &TransitionError{VehicleID: v.ID, Trigger: t, Current: v.Status, Expected: Expected(t)}
		}
		return model.InvalidState(fmt.Sprintf("vehicle %s: %s without assignment", v.ID, v.Status))
	}
	next, err := Next(v.ID, v.Status, t)
	if err != nil {
		return err
	}
	v.Status = next
	return nil
}

func release(v *model.Vehicle) model.Destination {
	var d model.Destination
	if v.Destination != nil {
		d = *v.Destination
	}
	v.CurrentIncident = ""
	v.Destination = nil
	return d
}

// AdvanceIncident moves inc forward to status. Moving backwards or
// sideways fails, except a reset to pending which clears the assignment.
func AdvanceIncident(inc *model.Incident, status model.IncidentStatus) error {
	if status == model.IncidentPending {
		if inc.Status == model.IncidentResolved {
			return model.InvalidState(fmt.Sprintf("incident %s: already resolved", inc.ID))
		}
		inc.Status = status
		inc.AssignedVehicle = ""
		return nil
	}
	if status.Rank() < 0 {
		return model.Validation(fmt.Sprintf("unknown incident status %q", status))
	}
	if status.Rank() <= inc.Status.Rank() {
		return model.InvalidState(fmt.Sprintf("incident %s: status is %s, cannot move to %s", inc.ID, inc.Status, status))
	}
	inc.Status = status
	return nil
}
