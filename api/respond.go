// Package api holds the JSON helpers shared by the HTTP adapters.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/ers/core/model"
)

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Error string          `json:"error"`
	Kind  model.ErrorKind `json:"kind"`
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInvalidState:
		return http.StatusConflict
	case model.KindNoCapacity:
		return http.StatusServiceUnavailable
	case model.KindExternalService:
		return http.StatusBadGateway
	case model.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err with the status of its kind.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	WriteJSON(w, status, ErrorBody{Error: msg, Kind: model.KindOf(err)})
}

// DecodeJSON reads a JSON body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.Validation("invalid request body: " + err.Error())
	}
	return nil
}
