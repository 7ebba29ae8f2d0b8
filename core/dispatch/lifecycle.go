package dispatch

import (
	"context"
	"fmt"

	"github.com/kilianp07/ers/core/events"
	"github.com/kilianp07/ers/core/model"
	"github.com/kilianp07/ers/core/store"
	"github.com/kilianp07/ers/core/vehiclestatus"
)

// Ref designates a dispatch by its incident, its vehicle or both. When both
// are set they must refer to the same assignment.
type Ref struct {
	IncidentID string `json:"incident_id,omitempty"`
	VehicleID  string `json:"vehicle_id,omitempty"`
}

// ByIncident refers to the dispatch serving an incident.
func ByIncident(id string) Ref { return Ref{IncidentID: id} }

// ByVehicle refers to the dispatch a vehicle is working.
func ByVehicle(id string) Ref { return Ref{VehicleID: id} }

func (r Ref) String() string {
	switch {
	case r.IncidentID != "" && r.VehicleID != "":
		return fmt.Sprintf("incident %s/vehicle %s", r.IncidentID, r.VehicleID)
	case r.VehicleID != "":
		return "vehicle " + r.VehicleID
	default:
		return "incident " + r.IncidentID
	}
}

// Transition reports the effect of one lifecycle step.
type Transition struct {
	Trigger      vehiclestatus.Trigger `json:"trigger"`
	Incident     model.Incident        `json:"incident"`
	Vehicle      model.Vehicle         `json:"vehicle"`
	VehicleFrom  model.VehicleStatus   `json:"vehicle_from"`
	IncidentFrom model.IncidentStatus  `json:"incident_from"`
	HospitalID   string                `json:"hospital_id,omitempty"`
	// LoadDelta is the signed load change applied by this step.
	LoadDelta    int  `json:"load_delta"`
	HospitalLoad int  `json:"hospital_load"`
	LoadChanged  bool `json:"-"`
}

// MarkArrived records the vehicle reaching the scene.
func (c *Coordinator) MarkArrived(ctx context.Context, ref Ref) (Transition, error) {
	return c.advance(ctx, ref, vehiclestatus.TriggerArriveScene)
}

// MarkTransporting starts the hospital leg.
func (c *Coordinator) MarkTransporting(ctx context.Context, ref Ref) (Transition, error) {
	return c.advance(ctx, ref, vehiclestatus.TriggerStartTransport)
}

// MarkArrivedAtHospital records the vehicle reaching the hospital. Under the
// arrival load policy this is where the hospital load is incremented.
func (c *Coordinator) MarkArrivedAtHospital(ctx context.Context, ref Ref) (Transition, error) {
	return c.advance(ctx, ref, vehiclestatus.TriggerArriveHospital)
}

// CompleteDispatch frees the vehicle, resolves the incident and releases the
// hospital load applied for this dispatch. Completing twice fails with
// invalid_state and changes nothing.
func (c *Coordinator) CompleteDispatch(ctx context.Context, ref Ref) (Transition, error) {
	return c.advance(ctx, ref, vehiclestatus.TriggerComplete)
}

// Cancel aborts an active dispatch: the vehicle becomes available, the
// incident returns to pending and any applied load is released.
func (c *Coordinator) Cancel(ctx context.Context, ref Ref) (Transition, error) {
	return c.advance(ctx, ref, vehiclestatus.TriggerReset)
}

// resolve loads the incident and vehicle designated by ref.
func resolve(r store.Reader, ref Ref) (model.Incident, model.Vehicle, error) {
	var (
		inc model.Incident
		v   model.Vehicle
		err error
	)
	if ref.IncidentID == "" && ref.VehicleID == "" {
		return inc, v, model.Validation("dispatch reference needs an incident or a vehicle id")
	}
	vehicleID := ref.VehicleID
	if ref.IncidentID != "" {
		if inc, err = r.Incident(ref.IncidentID); err != nil {
			return inc, v, err
		}
		if vehicleID == "" {
			if inc.AssignedVehicle == "" {
				return inc, v, model.InvalidState(fmt.Sprintf("incident %s has no assigned vehicle", inc.ID))
			}
			vehicleID = inc.AssignedVehicle
		}
	}
	if v, err = r.Vehicle(vehicleID); err != nil {
		return inc, v, err
	}
	if ref.IncidentID == "" {
		if v.CurrentIncident == "" {
			return inc, v, model.InvalidState(fmt.Sprintf("vehicle %s is not on a dispatch", v.ID))
		}
		if inc, err = r.Incident(v.CurrentIncident); err != nil {
			return inc, v, err
		}
	}
	if v.CurrentIncident != inc.ID {
		return inc, v, model.InvalidState(fmt.Sprintf("vehicle %s is not assigned to incident %s (status %s)", v.ID, inc.ID, inc.Status))
	}
	return inc, v, nil
}

//gocyclo:ignore
func (c *Coordinator) advance(ctx context.Context, ref Ref, trigger vehiclestatus.Trigger) (Transition, error) {
	var t Transition
	now := c.clock()
	err := c.store.Update(ctx, func(tx store.Tx) error {
		inc, v, err := resolve(tx, ref)
		if err != nil {
			return err
		}
		t = Transition{Trigger: trigger, VehicleFrom: v.Status, IncidentFrom: inc.Status}
		if v.Destination != nil {
			t.HospitalID = v.Destination.HospitalID
		}
		adjust := func(delta int) error {
			if delta == 0 || t.HospitalID == "" {
				return nil
			}
			applied, load, err := tx.AdjustHospitalLoad(t.HospitalID, delta, c.cfg.MaxLoad)
			if err != nil {
				return err
			}
			t.LoadDelta, t.HospitalLoad, t.LoadChanged = applied, load, true
			return nil
		}

		switch trigger {
		case vehiclestatus.TriggerArriveScene:
			err = vehiclestatus.ArriveAtScene(&v)
		case vehiclestatus.TriggerStartTransport:
			err = vehiclestatus.StartTransport(&v)
		case vehiclestatus.TriggerArriveHospital:
			if err = vehiclestatus.ArriveAtHospital(&v); err == nil && c.cfg.LoadPolicy == LoadOnArrival {
				if err = adjust(c.cfg.increment()); err == nil {
					v.Destination.LoadDelta += t.LoadDelta
				}
			}
		case vehiclestatus.TriggerComplete:
			var dest model.Destination
			if dest, err = vehiclestatus.Complete(&v); err == nil {
				err = adjust(-c.releaseAmount(dest, true))
			}
		case vehiclestatus.TriggerReset:
			var dest model.Destination
			if dest, err = vehiclestatus.Reset(&v); err == nil {
				err = adjust(-c.releaseAmount(dest, false))
			}
		default:
			err = fmt.Errorf("dispatch: unsupported trigger %q", trigger)
		}
		if err != nil {
			return err
		}

		target := vehiclestatus.IncidentStatusFor(v.Status)
		if trigger == vehiclestatus.TriggerReset {
			target = model.IncidentPending
		}
		if err := vehiclestatus.AdvanceIncident(&inc, target); err != nil {
			return err
		}
		v.UpdatedAt, inc.UpdatedAt = now, now
		if err := tx.PutVehicle(v); err != nil {
			return err
		}
		if err := tx.PutIncident(inc); err != nil {
			return err
		}
		t.Vehicle, t.Incident = v, inc
		return nil
	})
	if err != nil {
		c.capture(string(trigger), err)
		return Transition{}, err
	}
	c.publishTransition(t)
	return t, nil
}

// releaseAmount is the load to give back when a dispatch ends. A configured
// flat decrement only applies to completions of dispatches that did add
// load; otherwise exactly the recorded delta is released.
func (c *Coordinator) releaseAmount(dest model.Destination, completing bool) int {
	if completing && c.cfg.LoadDecrement > 0 && dest.LoadDelta > 0 {
		return c.cfg.LoadDecrement
	}
	return dest.LoadDelta
}

func (c *Coordinator) publishTransition(t Transition) {
	vehicleTransitions.WithLabelValues(string(t.Trigger)).Inc()
	c.log.Infof("%s: vehicle %s %s -> %s, incident %s %s -> %s",
		t.Trigger, t.Vehicle.ID, t.VehicleFrom, t.Vehicle.Status, t.Incident.ID, t.IncidentFrom, t.Incident.Status)
	now := t.Vehicle.UpdatedAt
	c.pub.Publish(events.VehicleStatusChanged{
		VehicleID:  t.Vehicle.ID,
		IncidentID: t.Incident.ID,
		From:       t.VehicleFrom,
		To:         t.Vehicle.Status,
		At:         now,
	})
	c.pub.Publish(events.IncidentStatusChanged{
		IncidentID: t.Incident.ID,
		VehicleID:  t.Vehicle.ID,
		From:       t.IncidentFrom,
		To:         t.Incident.Status,
		At:         now,
	})
	if t.LoadChanged {
		c.pub.Publish(events.HospitalLoadChanged{
			HospitalID: t.HospitalID,
			Load:       t.HospitalLoad,
			Delta:      t.LoadDelta,
			At:         now,
		})
	}
}
