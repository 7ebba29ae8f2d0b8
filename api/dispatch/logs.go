package dispatch

import (
	"net/http"
	"time"

	"github.com/kilianp07/ers/api"
	"github.com/kilianp07/ers/core/dispatch/logging"
	"github.com/kilianp07/ers/core/model"
)

// NewLogHandler returns an HTTP handler exposing the dispatch journal via
// GET /api/dispatch/logs. Supported filters: start, end (RFC3339),
// incident_id, vehicle_id and failed=true.
func NewLogHandler(store logging.LogStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := logging.LogQuery{
			IncidentID: r.URL.Query().Get("incident_id"),
			VehicleID:  r.URL.Query().Get("vehicle_id"),
			FailedOnly: r.URL.Query().Get("failed") == "true",
		}
		for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
			s := r.URL.Query().Get(name)
			if s == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				api.WriteError(w, model.Validation(name+" must be RFC3339"))
				return
			}
			*dst = t
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			api.WriteError(w, err)
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		api.WriteJSON(w, http.StatusOK, records)
	})
}
