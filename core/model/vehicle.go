package model

import (
	"fmt"
	"strings"
	"time"
)

// VehicleStatus is the canonical ambulance lifecycle state.
type VehicleStatus string

const (
	StatusAvailable          VehicleStatus = "available"
	StatusDispatched         VehicleStatus = "dispatched"
	StatusArrivedAtEmergency VehicleStatus = "arrived_at_emergency"
	StatusTransporting       VehicleStatus = "transporting"
	StatusArrivedAtHospital  VehicleStatus = "arrived_at_hospital"
)

// ParseVehicleStatus maps external input to a canonical status. The legacy
// "busy" value is treated as arrived_at_emergency.
func ParseVehicleStatus(s string) (VehicleStatus, error) {
	switch v := VehicleStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusAvailable, StatusDispatched, StatusArrivedAtEmergency, StatusTransporting, StatusArrivedAtHospital:
		return v, nil
	case "busy":
		return StatusArrivedAtEmergency, nil
	case "":
		return StatusAvailable, nil
	default:
		return "", Validation(fmt.Sprintf("unknown vehicle status %q", s))
	}
}

// DestinationKind tags the leg a vehicle is currently on.
type DestinationKind string

const (
	ToIncidentKind DestinationKind = "to_incident"
	ToHospitalKind DestinationKind = "to_hospital"
)

// Destination describes where a vehicle is heading. Point is the target of
// the current leg. The hospital chosen at dispatch travels with every leg
// along with the load that was applied to it.
type Destination struct {
	Kind       DestinationKind `json:"kind"`
	Point      Point           `json:"point"`
	HospitalID string          `json:"hospital_id"`
	Hospital   Point           `json:"hospital"`
	LoadDelta  int             `json:"load_delta"`
	ETASeconds *float64        `json:"eta_seconds,omitempty"`
}

// ToIncident builds the first leg of a dispatch.
func ToIncident(scene Point, hospitalID string, hospital Point, loadDelta int) Destination {
	return Destination{
		Kind:       ToIncidentKind,
		Point:      scene,
		HospitalID: hospitalID,
		Hospital:   hospital,
		LoadDelta:  loadDelta,
	}
}

// ToHospital switches d to the transport leg.
func (d Destination) ToHospital() Destination {
	d.Kind = ToHospitalKind
	d.Point = d.Hospital
	d.ETASeconds = nil
	return d
}

// Validate rejects partially populated destinations.
func (d Destination) Validate() error {
	switch d.Kind {
	case ToIncidentKind, ToHospitalKind:
	default:
		return Validation(fmt.Sprintf("unknown destination kind %q", d.Kind))
	}
	if !d.Point.Valid() {
		return Validation(fmt.Sprintf("invalid destination point %s", d.Point))
	}
	if d.HospitalID == "" {
		return Validation("destination has no hospital")
	}
	if d.Kind == ToHospitalKind && d.Point != d.Hospital {
		return Validation("hospital leg does not target the hospital")
	}
	return nil
}

// Vehicle is an ambulance unit.
type Vehicle struct {
	ID              string        `json:"id" yaml:"id" validate:"required"`
	CallSign        string        `json:"call_sign" yaml:"call_sign"`
	DriverName      string        `json:"driver_name,omitempty" yaml:"driver_name"`
	DriverContact   string        `json:"driver_contact,omitempty" yaml:"driver_contact"`
	Location        Point         `json:"location" yaml:"location"`
	Status          VehicleStatus `json:"status" yaml:"status"`
	CurrentIncident string        `json:"current_incident,omitempty" yaml:"-"`
	Destination     *Destination  `json:"destination,omitempty" yaml:"-"`
	UpdatedAt       time.Time     `json:"updated_at" yaml:"-"`
}

// Label returns the call sign, falling back to the id.
func (v Vehicle) Label() string {
	if v.CallSign != "" {
		return v.CallSign
	}
	return v.ID
}

// CheckAssignment verifies that an available vehicle owns neither an
// incident nor a destination and that any other vehicle owns both.
func (v Vehicle) CheckAssignment() error {
	assigned := v.CurrentIncident != "" || v.Destination != nil
	complete := v.CurrentIncident != "" && v.Destination != nil
	if v.Status == StatusAvailable && assigned {
		return fmt.Errorf("vehicle %s is available but still assigned", v.ID)
	}
	if v.Status != StatusAvailable && !complete {
		return fmt.Errorf("vehicle %s is %s without a complete assignment", v.ID, v.Status)
	}
	return nil
}
