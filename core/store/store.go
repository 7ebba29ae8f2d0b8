// Package store defines the persistence contract used by the dispatch core.
//
// All mutations go through Update, which runs its callback as one atomic
// transaction: either every write made through the Tx is committed or none
// is. Implementations serialize Update calls, so a record read inside the
// callback cannot be changed by another mutator before the commit.
// Listings are returned in creation order.
package store

import (
	"context"

	"github.com/kilianp07/ers/core/model"
)

// VehicleFilter selects vehicles by status. An empty filter matches all.
type VehicleFilter struct {
	Statuses []model.VehicleStatus
}

// Match reports whether v passes the filter.
func (f VehicleFilter) Match(v model.Vehicle) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if v.Status == s {
			return true
		}
	}
	return false
}

// IncidentFilter selects incidents by status. An empty filter matches all.
type IncidentFilter struct {
	Statuses []model.IncidentStatus
}

// Match reports whether inc passes the filter.
func (f IncidentFilter) Match(inc model.Incident) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if inc.Status == s {
			return true
		}
	}
	return false
}

// Reader exposes consistent reads. Get methods return a model.Error of kind
// not_found for unknown ids.
type Reader interface {
	Incident(id string) (model.Incident, error)
	Incidents(f IncidentFilter) ([]model.Incident, error)
	Vehicle(id string) (model.Vehicle, error)
	Vehicles(f VehicleFilter) ([]model.Vehicle, error)
	Hospital(id string) (model.Hospital, error)
	Hospitals() ([]model.Hospital, error)
}

// Tx is a Reader that can also write within the enclosing transaction.
type Tx interface {
	Reader
	PutIncident(inc model.Incident) error
	PutVehicle(v model.Vehicle) error
	PutHospital(h model.Hospital) error
	// AdjustHospitalLoad adds delta to the hospital load clamped to
	// [0, max] and returns the delta actually applied and the new load.
	AdjustHospitalLoad(id string, delta, max int) (applied, load int, err error)
	// DeleteIncidents removes every incident matching f and returns how
	// many were removed.
	DeleteIncidents(f IncidentFilter) (int, error)
}

// Store is the single authoritative state store.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}
