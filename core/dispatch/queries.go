package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/ers/core/eta"
	"github.com/kilianp07/ers/core/events"
	"github.com/kilianp07/ers/core/geo"
	"github.com/kilianp07/ers/core/model"
	"github.com/kilianp07/ers/core/store"
)

// View joins an incident with the vehicle and hospital serving it.
type View struct {
	Incident model.Incident  `json:"incident"`
	Vehicle  *model.Vehicle  `json:"vehicle,omitempty"`
	Hospital *model.Hospital `json:"hospital,omitempty"`
	// Leg is the kind of the vehicle's current destination.
	Leg        model.DestinationKind `json:"leg,omitempty"`
	DistanceKm *float64              `json:"distance_km,omitempty"`
	ETASeconds *float64              `json:"eta_s,omitempty"`
	ETASource  eta.Source            `json:"eta_source,omitempty"`
}

// moving reports whether the vehicle is travelling a leg.
func (v View) moving() bool {
	return v.Vehicle != nil && v.Vehicle.Destination != nil &&
		(v.Vehicle.Status == model.StatusDispatched || v.Vehicle.Status == model.StatusTransporting)
}

// Incident returns one incident.
func (c *Coordinator) Incident(ctx context.Context, id string) (model.Incident, error) {
	var inc model.Incident
	err := c.store.View(ctx, func(r store.Reader) error {
		var err error
		inc, err = r.Incident(id)
		return err
	})
	return inc, err
}

// ListIncidents returns incidents in creation order, optionally filtered by status.
func (c *Coordinator) ListIncidents(ctx context.Context, statuses ...model.IncidentStatus) ([]model.Incident, error) {
	var out []model.Incident
	err := c.store.View(ctx, func(r store.Reader) error {
		var err error
		out, err = r.Incidents(store.IncidentFilter{Statuses: statuses})
		return err
	})
	return out, err
}

// Vehicles returns vehicles in creation order, optionally filtered by status.
func (c *Coordinator) Vehicles(ctx context.Context, statuses ...model.VehicleStatus) ([]model.Vehicle, error) {
	var out []model.Vehicle
	err := c.store.View(ctx, func(r store.Reader) error {
		var err error
		out, err = r.Vehicles(store.VehicleFilter{Statuses: statuses})
		return err
	})
	return out, err
}

// Hospitals returns every hospital.
func (c *Coordinator) Hospitals(ctx context.Context) ([]model.Hospital, error) {
	var out []model.Hospital
	err := c.store.View(ctx, func(r store.Reader) error {
		var err error
		out, err = r.Hospitals()
		return err
	})
	return out, err
}

// Details returns an incident with its vehicle and hospital, if any.
func (c *Coordinator) Details(ctx context.Context, incidentID string) (View, error) {
	var view View
	err := c.store.View(ctx, func(r store.Reader) error {
		inc, err := r.Incident(incidentID)
		if err != nil {
			return err
		}
		view = View{Incident: inc}
		if inc.AssignedVehicle == "" {
			return nil
		}
		v, err := r.Vehicle(inc.AssignedVehicle)
		if err != nil {
			if model.IsKind(err, model.KindNotFound) {
				return nil
			}
			return err
		}
		if v.CurrentIncident != inc.ID {
			return nil
		}
		view.Vehicle = &v
		return attachHospital(r, &view)
	})
	if err != nil {
		return View{}, err
	}
	c.fillETAs(ctx, []View{view})
	return view, err
}

// ActiveDispatches lists every vehicle on a dispatch with its incident,
// hospital and a live ETA to the current leg. ETA lookups run in parallel
// after the read transaction has ended.
func (c *Coordinator) ActiveDispatches(ctx context.Context) ([]View, error) {
	var views []View
	err := c.store.View(ctx, func(r store.Reader) error {
		vs, err := r.Vehicles(store.VehicleFilter{Statuses: []model.VehicleStatus{
			model.StatusDispatched, model.StatusArrivedAtEmergency,
			model.StatusTransporting, model.StatusArrivedAtHospital,
		}})
		if err != nil {
			return err
		}
		for i := range vs {
			v := vs[i]
			if v.CurrentIncident == "" {
				c.log.Warnf("vehicle %s is %s without an incident", v.ID, v.Status)
				continue
			}
			inc, err := r.Incident(v.CurrentIncident)
			if err != nil {
				if model.IsKind(err, model.KindNotFound) {
					c.log.Warnf("vehicle %s references missing incident %s", v.ID, v.CurrentIncident)
					continue
				}
				return err
			}
			view := View{Incident: inc, Vehicle: &v}
			if err := attachHospital(r, &view); err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.fillETAs(ctx, views)
	return views, nil
}

func attachHospital(r store.Reader, view *View) error {
	d := view.Vehicle.Destination
	if d == nil {
		return nil
	}
	view.Leg = d.Kind
	h, err := r.Hospital(d.HospitalID)
	if err != nil {
		if model.IsKind(err, model.KindNotFound) {
			return nil
		}
		return err
	}
	view.Hospital = &h
	return nil
}

// fillETAs computes the live travel time of every moving vehicle.
func (c *Coordinator) fillETAs(ctx context.Context, views []View) {
	est := c.currentEstimator()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range views {
		if !views[i].moving() {
			continue
		}
		view := &views[i]
		g.Go(func() error {
			from, to := view.Vehicle.Location, view.Vehicle.Destination.Point
			d := geo.DistanceKm(from, to)
			view.DistanceKm = &d
			e := est.Estimate(gctx, from, to)
			view.ETASeconds, view.ETASource = e.Seconds, e.Source
			return nil
		})
	}
	_ = g.Wait()
}

// AvailableVehicles lists available vehicles, nearest first when near is set.
func (c *Coordinator) AvailableVehicles(ctx context.Context, near *model.Point) ([]model.Vehicle, error) {
	vs, err := c.Vehicles(ctx, model.StatusAvailable)
	if err != nil || near == nil {
		return vs, err
	}
	if !near.Valid() {
		return nil, model.Validation(fmt.Sprintf("invalid reference point %s", *near))
	}
	sort.SliceStable(vs, func(i, j int) bool {
		return geo.DistanceKm(*near, vs[i].Location) < geo.DistanceKm(*near, vs[j].Location)
	})
	return vs, nil
}

// UpdateVehicleLocation records a position reported for a vehicle.
func (c *Coordinator) UpdateVehicleLocation(ctx context.Context, vehicleID string, p model.Point) (model.Vehicle, error) {
	if !p.Valid() {
		return model.Vehicle{}, model.Validation(fmt.Sprintf("invalid location %s", p))
	}
	var v model.Vehicle
	now := c.clock()
	err := c.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if v, err = tx.Vehicle(vehicleID); err != nil {
			return err
		}
		v.Location = p
		v.UpdatedAt = now
		return tx.PutVehicle(v)
	})
	if err != nil {
		return model.Vehicle{}, err
	}
	c.pub.Publish(events.VehicleLocationChanged{
		VehicleID:  v.ID,
		CallSign:   v.CallSign,
		IncidentID: v.CurrentIncident,
		Status:     v.Status,
		Location:   v.Location,
		At:         now,
	})
	return v, nil
}

// RelocateVehicle moves a vehicle only while it still has the expected
// status. The simulator uses it to persist a movement step without
// overwriting a concurrent transition.
func (c *Coordinator) RelocateVehicle(ctx context.Context, vehicleID string, expect model.VehicleStatus, p model.Point) (model.Vehicle, error) {
	var v model.Vehicle
	err := c.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if v, err = tx.Vehicle(vehicleID); err != nil {
			return err
		}
		if v.Status != expect {
			return model.InvalidState(fmt.Sprintf("vehicle %s is %s, expected %s", v.ID, v.Status, expect))
		}
		v.Location = p
		v.UpdatedAt = c.clock()
		return tx.PutVehicle(v)
	})
	return v, err
}

// RegisterVehicle creates or updates a vehicle. Descriptive fields and the
// location of an existing vehicle are replaced; its assignment is kept. New
// vehicles always start available.
func (c *Coordinator) RegisterVehicle(ctx context.Context, in model.Vehicle) (model.Vehicle, error) {
	if err := c.validate.Struct(in); err != nil {
		return model.Vehicle{}, model.Validation(err.Error())
	}
	if !in.Location.Valid() {
		return model.Vehicle{}, model.Validation(fmt.Sprintf("invalid vehicle location %s", in.Location))
	}
	status, err := model.ParseVehicleStatus(string(in.Status))
	if err != nil {
		return model.Vehicle{}, err
	}
	var out model.Vehicle
	err = c.store.Update(ctx, func(tx store.Tx) error {
		cur, err := tx.Vehicle(in.ID)
		switch {
		case err == nil:
			cur.CallSign, cur.DriverName, cur.DriverContact = in.CallSign, in.DriverName, in.DriverContact
			cur.Location = in.Location
			out = cur
		case model.IsKind(err, model.KindNotFound):
			if status != model.StatusAvailable {
				return model.Validation(fmt.Sprintf("new vehicle %s must be available, got %s", in.ID, status))
			}
			out = model.Vehicle{
				ID:            in.ID,
				CallSign:      in.CallSign,
				DriverName:    in.DriverName,
				DriverContact: in.DriverContact,
				Location:      in.Location,
				Status:        model.StatusAvailable,
			}
		default:
			return err
		}
		out.UpdatedAt = c.clock()
		return tx.PutVehicle(out)
	})
	return out, err
}

// RegisterHospital creates or updates a hospital. The load given for a new
// hospital is clamped and used as its starting load; an existing hospital
// keeps its stored load so in-flight dispatches release against it.
func (c *Coordinator) RegisterHospital(ctx context.Context, h model.Hospital) (model.Hospital, error) {
	if err := c.validate.Struct(h); err != nil {
		return model.Hospital{}, model.Validation(err.Error())
	}
	if !h.Location.Valid() {
		return model.Hospital{}, model.Validation(fmt.Sprintf("invalid hospital location %s", h.Location))
	}
	h.Load = model.ClampLoad(h.Load, c.cfg.MaxLoad)
	specs := make([]string, 0, len(h.Specialties))
	for _, s := range h.Specialties {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			specs = append(specs, s)
		}
	}
	h.Specialties = specs
	err := c.store.Update(ctx, func(tx store.Tx) error {
		cur, err := tx.Hospital(h.ID)
		switch {
		case err == nil:
			h.Load = cur.Load
		case !model.IsKind(err, model.KindNotFound):
			return err
		}
		return tx.PutHospital(h)
	})
	if err != nil {
		return model.Hospital{}, err
	}
	return h, nil
}

// DeleteIncidents removes incidents with the given statuses. Only pending
// and resolved incidents can be deleted; no status means both.
func (c *Coordinator) DeleteIncidents(ctx context.Context, statuses ...model.IncidentStatus) (int, error) {
	if len(statuses) == 0 {
		statuses = []model.IncidentStatus{model.IncidentPending, model.IncidentResolved}
	}
	for _, s := range statuses {
		if s != model.IncidentPending && s != model.IncidentResolved {
			return 0, model.Validation(fmt.Sprintf("cannot delete %s incidents", s))
		}
	}
	var n int
	err := c.store.Update(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.DeleteIncidents(store.IncidentFilter{Statuses: statuses})
		return err
	})
	if err == nil && n > 0 {
		c.log.Infof("deleted %d incidents (%v)", n, statuses)
	}
	return n, err
}
