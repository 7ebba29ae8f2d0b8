// Package dispatch exposes the dispatch coordinator over HTTP.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kilianp07/ers/api"
	coredispatch "github.com/kilianp07/ers/core/dispatch"
	"github.com/kilianp07/ers/core/model"
)

// Service is the part of the coordinator served by this package.
type Service interface {
	ReportIncident(ctx context.Context, in coredispatch.NewIncident) (model.Incident, error)
	ListIncidents(ctx context.Context, statuses ...model.IncidentStatus) ([]model.Incident, error)
	DeleteIncidents(ctx context.Context, statuses ...model.IncidentStatus) (int, error)
	Details(ctx context.Context, incidentID string) (coredispatch.View, error)
	Dispatch(ctx context.Context, incidentID string) (coredispatch.Result, error)
	MarkArrived(ctx context.Context, ref coredispatch.Ref) (coredispatch.Transition, error)
	MarkTransporting(ctx context.Context, ref coredispatch.Ref) (coredispatch.Transition, error)
	MarkArrivedAtHospital(ctx context.Context, ref coredispatch.Ref) (coredispatch.Transition, error)
	CompleteDispatch(ctx context.Context, ref coredispatch.Ref) (coredispatch.Transition, error)
	Cancel(ctx context.Context, ref coredispatch.Ref) (coredispatch.Transition, error)
	ActiveDispatches(ctx context.Context) ([]coredispatch.View, error)
	Stats(ctx context.Context) (coredispatch.Stats, error)
}

type transitionFunc func(Service, context.Context, coredispatch.Ref) (coredispatch.Transition, error)

// Register adds the incident and dispatch routes to mux.
func Register(mux *http.ServeMux, svc Service) {
	h := handler{svc: svc}
	mux.HandleFunc("POST /api/incidents", h.report)
	mux.HandleFunc("GET /api/incidents", h.list)
	mux.HandleFunc("DELETE /api/incidents", h.delete)
	mux.HandleFunc("GET /api/incidents/{id}", h.details)
	mux.HandleFunc("POST /api/incidents/{id}/dispatch", h.dispatch)
	mux.HandleFunc("POST /api/incidents/{id}/arrived", h.transition(Service.MarkArrived))
	mux.HandleFunc("POST /api/incidents/{id}/transporting", h.transition(Service.MarkTransporting))
	mux.HandleFunc("POST /api/incidents/{id}/arrived-hospital", h.transition(Service.MarkArrivedAtHospital))
	mux.HandleFunc("POST /api/incidents/{id}/complete", h.transition(Service.CompleteDispatch))
	mux.HandleFunc("POST /api/incidents/{id}/cancel", h.transition(Service.Cancel))
	mux.HandleFunc("GET /api/dispatches/active", h.active)
	mux.HandleFunc("GET /api/stats", h.stats)
}

type handler struct {
	svc Service
}

func (h handler) report(w http.ResponseWriter, r *http.Request) {
	var in coredispatch.NewIncident
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteError(w, err)
		return
	}
	inc, err := h.svc.ReportIncident(r.Context(), in)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	// ?dispatch=true reports and dispatches in one call
	if r.URL.Query().Get("dispatch") == "true" {
		res, err := h.svc.Dispatch(r.Context(), inc.ID)
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, res)
		return
	}
	api.WriteJSON(w, http.StatusCreated, inc)
}

// incidentStatuses parses ?status=a,b.
func incidentStatuses(r *http.Request) ([]model.IncidentStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	var out []model.IncidentStatus
	for _, s := range strings.Split(raw, ",") {
		st := model.IncidentStatus(strings.TrimSpace(s))
		if st.Rank() < 0 {
			return nil, model.Validation(fmt.Sprintf("unknown incident status %q", s))
		}
		out = append(out, st)
	}
	return out, nil
}

func (h handler) list(w http.ResponseWriter, r *http.Request) {
	statuses, err := incidentStatuses(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	incs, err := h.svc.ListIncidents(r.Context(), statuses...)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if incs == nil {
		incs = []model.Incident{}
	}
	api.WriteJSON(w, http.StatusOK, incs)
}

func (h handler) delete(w http.ResponseWriter, r *http.Request) {
	statuses, err := incidentStatuses(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	n, err := h.svc.DeleteIncidents(r.Context(), statuses...)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h handler) details(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Details(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, v)
}

func (h handler) dispatch(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Dispatch(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

// transition serves the lifecycle routes. An optional vehicle_id query
// parameter is checked against the incident's assignment.
func (h handler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := coredispatch.Ref{IncidentID: r.PathValue("id"), VehicleID: r.URL.Query().Get("vehicle_id")}
		t, err := fn(h.svc, r.Context(), ref)
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, t)
	}
}

func (h handler) active(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ActiveDispatches(r.Context())
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if views == nil {
		views = []coredispatch.View{}
	}
	api.WriteJSON(w, http.StatusOK, views)
}

func (h handler) stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Stats(r.Context())
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, s)
}
