package events

import (
	"time"

	"github.com/kilianp07/ers/core/model"
)

const (
	NameIncidentReported      = "incident-reported"
	NameDispatched            = "dispatched"
	NameVehicleStatusChanged  = "vehicle-status-changed"
	NameVehicleLocation       = "vehicle-location-changed"
	NameVehicleLocationsBatch = "vehicle-locations-updated"
	NameIncidentStatusChanged = "incident-status-changed"
	NameHospitalLoadChanged   = "hospital-load-changed"
)

// Event is anything sent through a Publisher.
type Event interface {
	EventName() string
}

// Publisher delivers events to observers. Delivery is best effort.
type Publisher interface {
	Publish(Event)
}

// Fanout publishes every event to each non-nil publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(e Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(e)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}

// IncidentSummary is the denormalized incident carried by events.
type IncidentSummary struct {
	ID       string         `json:"id"`
	Location model.Point    `json:"location"`
	Priority model.Priority `json:"priority"`
	Category string         `json:"category"`
	Patient  string         `json:"patient,omitempty"`
}

// VehicleSummary is the denormalized vehicle carried by events.
type VehicleSummary struct {
	ID       string      `json:"id"`
	CallSign string      `json:"call_sign"`
	Driver   string      `json:"driver,omitempty"`
	Location model.Point `json:"location"`
}

// HospitalSummary is the denormalized hospital carried by events.
type HospitalSummary struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Location model.Point `json:"location"`
	Load     int         `json:"load"`
}

func SummarizeIncident(i model.Incident) IncidentSummary {
	return IncidentSummary{ID: i.ID, Location: i.Location, Priority: i.Priority, Category: i.Category, Patient: i.PatientName}
}

func SummarizeVehicle(v model.Vehicle) VehicleSummary {
	return VehicleSummary{ID: v.ID, CallSign: v.CallSign, Driver: v.DriverName, Location: v.Location}
}

func SummarizeHospital(h model.Hospital) HospitalSummary {
	return HospitalSummary{ID: h.ID, Name: h.Name, Location: h.Location, Load: h.Load}
}

// IncidentReported is emitted when an incident is recorded.
type IncidentReported struct {
	Incident IncidentSummary `json:"incident"`
	At       time.Time       `json:"at"`
}

func (IncidentReported) EventName() string { return NameIncidentReported }

// Dispatched is emitted once a dispatch has been committed.
type Dispatched struct {
	Incident          IncidentSummary `json:"incident"`
	Vehicle           VehicleSummary  `json:"vehicle"`
	Hospital          HospitalSummary `json:"hospital"`
	VehicleToSceneKm  float64         `json:"vehicle_to_scene_km"`
	SceneToHospitalKm float64         `json:"scene_to_hospital_km"`
	HospitalScore     float64         `json:"hospital_score"`
	ETAToScene        *float64        `json:"eta_to_scene_s,omitempty"`
	ETAToHospital     *float64        `json:"eta_to_hospital_s,omitempty"`
	At                time.Time       `json:"at"`
}

func (Dispatched) EventName() string { return NameDispatched }

// VehicleStatusChanged is emitted on every vehicle transition.
type VehicleStatusChanged struct {
	VehicleID  string              `json:"vehicle_id"`
	IncidentID string              `json:"incident_id,omitempty"`
	From       model.VehicleStatus `json:"from"`
	To         model.VehicleStatus `json:"to"`
	At         time.Time           `json:"at"`
}

func (VehicleStatusChanged) EventName() string { return NameVehicleStatusChanged }

// VehicleLocationChanged reports a vehicle position and speed.
type VehicleLocationChanged struct {
	VehicleID  string              `json:"vehicle_id"`
	CallSign   string              `json:"call_sign,omitempty"`
	IncidentID string              `json:"incident_id,omitempty"`
	Status     model.VehicleStatus `json:"status"`
	Location   model.Point         `json:"location"`
	SpeedKmh   float64             `json:"speed_kmh"`
	At         time.Time           `json:"at"`
}

func (VehicleLocationChanged) EventName() string { return NameVehicleLocation }

// VehicleLocationsBatch groups the location updates of one simulation tick.
type VehicleLocationsBatch struct {
	Vehicles []VehicleLocationChanged `json:"vehicles"`
	At       time.Time                `json:"at"`
}

func (VehicleLocationsBatch) EventName() string { return NameVehicleLocationsBatch }

// IncidentStatusChanged is emitted on every incident transition.
type IncidentStatusChanged struct {
	IncidentID string               `json:"incident_id"`
	VehicleID  string               `json:"vehicle_id,omitempty"`
	From       model.IncidentStatus `json:"from"`
	To         model.IncidentStatus `json:"to"`
	At         time.Time            `json:"at"`
}

func (IncidentStatusChanged) EventName() string { return NameIncidentStatusChanged }

// HospitalLoadChanged carries the new load and the applied delta.
type HospitalLoadChanged struct {
	HospitalID string    `json:"hospital_id"`
	Load       int       `json:"load"`
	Delta      int       `json:"delta"`
	At         time.Time `json:"at"`
}

func (HospitalLoadChanged) EventName() string { return NameHospitalLoadChanged }
