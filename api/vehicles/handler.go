// Package vehicles serves the fleet and hospital registry.
package vehicles

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilianp07/ers/api"
	"github.com/kilianp07/ers/core/model"
)

// Fleet is the part of the coordinator that manages vehicles and hospitals.
type Fleet interface {
	Vehicles(ctx context.Context, statuses ...model.VehicleStatus) ([]model.Vehicle, error)
	AvailableVehicles(ctx context.Context, near *model.Point) ([]model.Vehicle, error)
	UpdateVehicleLocation(ctx context.Context, vehicleID string, p model.Point) (model.Vehicle, error)
	RegisterVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error)
	Hospitals(ctx context.Context) ([]model.Hospital, error)
	RegisterHospital(ctx context.Context, h model.Hospital) (model.Hospital, error)
}

// Register adds the fleet routes to mux.
func Register(mux *http.ServeMux, f Fleet) {
	h := handler{f: f}
	mux.HandleFunc("GET /api/vehicles", h.list)
	mux.HandleFunc("POST /api/vehicles", h.register)
	mux.HandleFunc("GET /api/vehicles/available", h.available)
	mux.HandleFunc("PUT /api/vehicles/{id}/location", h.location)
	mux.HandleFunc("GET /api/hospitals", h.hospitals)
	mux.HandleFunc("POST /api/hospitals", h.registerHospital)
}

type handler struct {
	f Fleet
}

func (h handler) list(w http.ResponseWriter, r *http.Request) {
	var statuses []model.VehicleStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := model.ParseVehicleStatus(s)
			if err != nil {
				api.WriteError(w, err)
				return
			}
			statuses = append(statuses, st)
		}
	}
	vs, err := h.f.Vehicles(r.Context(), statuses...)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeVehicles(w, vs)
}

// available lists free vehicles, nearest first when lat and lng are given.
func (h handler) available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var near *model.Point
	if q.Has("lat") || q.Has("lng") {
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
		if err1 != nil || err2 != nil {
			api.WriteError(w, model.Validation(fmt.Sprintf("invalid reference point lat=%q lng=%q", q.Get("lat"), q.Get("lng"))))
			return
		}
		near = &model.Point{Lat: lat, Lng: lng}
	}
	vs, err := h.f.AvailableVehicles(r.Context(), near)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeVehicles(w, vs)
}

func (h handler) location(w http.ResponseWriter, r *http.Request) {
	var p model.Point
	if err := api.DecodeJSON(r, &p); err != nil {
		api.WriteError(w, err)
		return
	}
	v, err := h.f.UpdateVehicleLocation(r.Context(), r.PathValue("id"), p)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, v)
}

func (h handler) register(w http.ResponseWriter, r *http.Request) {
	var in model.Vehicle
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteError(w, err)
		return
	}
	v, err := h.f.RegisterVehicle(r.Context(), in)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, v)
}

func (h handler) hospitals(w http.ResponseWriter, r *http.Request) {
	hs, err := h.f.Hospitals(r.Context())
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if hs == nil {
		hs = []model.Hospital{}
	}
	api.WriteJSON(w, http.StatusOK, hs)
}

func (h handler) registerHospital(w http.ResponseWriter, r *http.Request) {
	var in model.Hospital
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteError(w, err)
		return
	}
	out, err := h.f.RegisterHospital(r.Context(), in)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func writeVehicles(w http.ResponseWriter, vs []model.Vehicle) {
	if vs == nil {
		vs = []model.Vehicle{}
	}
	api.WriteJSON(w, http.StatusOK, vs)
}
