// Package logging keeps the dispatch journal: one record per dispatch
// decision, successful or not.
package logging

import (
	"context"
	"fmt"
	"time"
)

// LogRecord captures one dispatch decision and its outcome.
type LogRecord struct {
	Timestamp         time.Time `json:"timestamp"`
	IncidentID        string    `json:"incident_id"`
	Priority          string    `json:"priority"`
	Category          string    `json:"category"`
	ScoringMode       string    `json:"scoring_mode"`
	VehicleID         string    `json:"vehicle_id,omitempty"`
	HospitalID        string    `json:"hospital_id,omitempty"`
	HospitalScore     float64   `json:"hospital_score,omitempty"`
	VehicleToSceneKm  float64   `json:"vehicle_to_scene_km,omitempty"`
	SceneToHospitalKm float64   `json:"scene_to_hospital_km,omitempty"`
	ETAToSceneSeconds *float64  `json:"eta_to_scene_s,omitempty"`
	LoadDelta         int       `json:"load_delta,omitempty"`
	Attempts          int       `json:"attempts"`
	Error             string    `json:"error,omitempty"`
	ErrorKind         string    `json:"error_kind,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start      time.Time
	End        time.Time
	IncidentID string
	VehicleID  string
	FailedOnly bool
}

// Match reports whether r passes every filter set in q.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.IncidentID != "" && r.IncidentID != q.IncidentID {
		return false
	}
	if q.VehicleID != "" && r.VehicleID != q.VehicleID {
		return false
	}
	if q.FailedOnly && r.Error == "" {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Rotation configures file rotation for the JSONL backend. A zero
// MaxSizeMB disables rotation.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open builds the store for backend: "jsonl", "sqlite" or "none".
func Open(backend, path string, rot Rotation) (LogStore, error) {
	switch backend {
	case "none", "":
		return NopStore{}, nil
	case "jsonl":
		if rot.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(path, rot.MaxSizeMB, rot.MaxBackups, rot.MaxAgeDays)
		}
		return NewJSONLStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("logging: unknown backend %q", backend)
	}
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, LogRecord) error              { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]LogRecord, error) { return nil, nil }
func (NopStore) Close() error                                         { return nil }
