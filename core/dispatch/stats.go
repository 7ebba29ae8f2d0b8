package dispatch

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/ers/core/model"
	"github.com/kilianp07/ers/core/store"
)

// Stats summarises the current state of incidents, vehicles and hospitals.
type Stats struct {
	TotalIncidents      int                          `json:"total_incidents"`
	PendingIncidents    int                          `json:"pending_incidents"`
	ActiveIncidents     int                          `json:"active_incidents"`
	ResolvedToday       int                          `json:"resolved_today"`
	AvailableVehicles   int                          `json:"available_vehicles"`
	BusyVehicles        int                          `json:"busy_vehicles"`
	Hospitals           int                          `json:"hospitals"`
	AverageHospitalLoad float64                      `json:"average_hospital_load"`
	MaxHospitalLoad     int                          `json:"max_hospital_load"`
	ByCategory          map[string]int               `json:"by_category"`
	ByPriority          map[model.Priority]int       `json:"by_priority"`
	ByStatus            map[model.IncidentStatus]int `json:"by_status"`
	VehiclesByStatus    map[model.VehicleStatus]int  `json:"vehicles_by_status"`
}

// Stats computes dashboard statistics from one consistent snapshot.
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	s := Stats{
		ByCategory:       map[string]int{},
		ByPriority:       map[model.Priority]int{},
		ByStatus:         map[model.IncidentStatus]int{},
		VehiclesByStatus: map[model.VehicleStatus]int{},
	}
	now := c.clock()
	y, m, d := now.Date()
	err := c.store.View(ctx, func(r store.Reader) error {
		incs, err := r.Incidents(store.IncidentFilter{})
		if err != nil {
			return err
		}
		for _, inc := range incs {
			s.TotalIncidents++
			s.ByStatus[inc.Status]++
			s.ByPriority[inc.Priority]++
			cat := inc.Category
			if cat == "" {
				cat = "uncategorized"
			}
			s.ByCategory[cat]++
			switch {
			case inc.Status == model.IncidentPending:
				s.PendingIncidents++
			case inc.Status.Active():
				s.ActiveIncidents++
			case inc.Status == model.IncidentResolved:
				iy, im, id := inc.UpdatedAt.In(now.Location()).Date()
				if iy == y && im == m && id == d {
					s.ResolvedToday++
				}
			}
		}
		vs, err := r.Vehicles(store.VehicleFilter{})
		if err != nil {
			return err
		}
		for _, v := range vs {
			s.VehiclesByStatus[v.Status]++
			if v.Status == model.StatusAvailable {
				s.AvailableVehicles++
			} else {
				s.BusyVehicles++
			}
		}
		hs, err := r.Hospitals()
		if err != nil {
			return err
		}
		s.Hospitals = len(hs)
		if len(hs) == 0 {
			return nil
		}
		loads := make([]float64, len(hs))
		for i, h := range hs {
			loads[i] = float64(h.Load)
			if h.Load > s.MaxHospitalLoad {
				s.MaxHospitalLoad = h.Load
			}
		}
		s.AverageHospitalLoad = stat.Mean(loads, nil)
		return nil
	})
	return s, err
}
