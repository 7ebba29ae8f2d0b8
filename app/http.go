package app

import (
	"net/http"

	"github.com/kilianp07/ers/api"
	apidispatch "github.com/kilianp07/ers/api/dispatch"
	"github.com/kilianp07/ers/api/vehicles"
)

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	apidispatch.Register(mux, s.Coordinator)
	vehicles.Register(mux, s.Coordinator)
	mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(s.Coordinator.Journal()))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"dropped_events": s.bus.Dropped(),
		})
	})
	return mux
}
