package metrics

import (
	"time"

	"github.com/kilianp07/ers/core/model"
)

// DispatchEvent describes the outcome of one dispatch attempt.
type DispatchEvent struct {
	IncidentID        string
	VehicleID         string
	HospitalID        string
	Priority          model.Priority
	Category          string
	HospitalScore     float64
	VehicleToSceneKm  float64
	SceneToHospitalKm float64
	ETAToScene        *float64
	Duration          time.Duration
	Attempts          int
	// ErrorKind is empty for a successful dispatch.
	ErrorKind string
	Time      time.Time
}

// Failed reports whether the dispatch did not produce an assignment.
func (e DispatchEvent) Failed() bool { return e.ErrorKind != "" }

// MetricsSink records dispatch outcomes.
type MetricsSink interface {
	RecordDispatch(ev DispatchEvent) error
}

// VehicleStateEvent is a snapshot of a vehicle after a status or position change.
type VehicleStateEvent struct {
	VehicleID  string
	CallSign   string
	Status     model.VehicleStatus
	IncidentID string
	Location   model.Point
	Time       time.Time
}

// VehicleStateRecorder records vehicle state snapshots.
type VehicleStateRecorder interface {
	RecordVehicleState(ev VehicleStateEvent) error
}

// HospitalLoadEvent reports a change of a hospital's load.
type HospitalLoadEvent struct {
	HospitalID string
	Load       int
	Delta      int
	Time       time.Time
}

// HospitalLoadRecorder records hospital load changes.
type HospitalLoadRecorder interface {
	RecordHospitalLoad(ev HospitalLoadEvent) error
}

// IncidentStatusEvent reports an incident transition.
type IncidentStatusEvent struct {
	IncidentID string
	From       model.IncidentStatus
	To         model.IncidentStatus
	Time       time.Time
}

// IncidentStatusRecorder records incident transitions.
type IncidentStatusRecorder interface {
	RecordIncidentStatus(ev IncidentStatusEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatch(DispatchEvent) error               { return nil }
func (NopSink) RecordVehicleState(VehicleStateEvent) error       { return nil }
func (NopSink) RecordHospitalLoad(HospitalLoadEvent) error       { return nil }
func (NopSink) RecordIncidentStatus(IncidentStatusEvent) error   { return nil }
