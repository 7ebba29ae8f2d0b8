package vehicles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	coredispatch "github.com/kilianp07/ers/core/dispatch"
	"github.com/kilianp07/ers/core/model"
	infrastore "github.com/kilianp07/ers/infra/store"
)

func newMux(t *testing.T) *http.ServeMux {
	t.Helper()
	coredispatch.ResetMetrics(nil)
	c, err := coredispatch.NewCoordinator(infrastore.NewMemoryStore(), nil, coredispatch.Config{}, nil)
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	ctx := context.Background()
	for id, lat := range map[string]float64{"AMB001": 22.40, "AMB002": 22.31} {
		if _, err := c.RegisterVehicle(ctx, model.Vehicle{ID: id, CallSign: id, Location: model.Point{Lat: lat, Lng: 73.18}}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	mux := http.NewServeMux()
	Register(mux, c)
	return mux
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rr
}

func TestAvailableNearestFirst(t *testing.T) {
	mux := newMux(t)
	rr := serve(mux, http.MethodGet, "/api/vehicles/available?lat=22.30&lng=73.18", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var out []model.Vehicle
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].ID != "AMB002" {
		t.Fatalf("unexpected order %#v", out)
	}

	if rr := serve(mux, http.MethodGet, "/api/vehicles/available?lat=abc&lng=73", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if rr := serve(mux, http.MethodGet, "/api/vehicles/available?lat=95&lng=73", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range point got %d", rr.Code)
	}
}

func TestUpdateLocation(t *testing.T) {
	mux := newMux(t)
	rr := serve(mux, http.MethodPut, "/api/vehicles/AMB001/location", `{"lat":22.35,"lng":73.20}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var v model.Vehicle
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Location != (model.Point{Lat: 22.35, Lng: 73.20}) {
		t.Fatalf("location not updated: %+v", v.Location)
	}
	if rr := serve(mux, http.MethodPut, "/api/vehicles/AMB404/location", `{"lat":22.35,"lng":73.20}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	if rr := serve(mux, http.MethodPut, "/api/vehicles/AMB001/location", `{"lat":"north"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestListAndRegister(t *testing.T) {
	mux := newMux(t)
	rr := serve(mux, http.MethodPost, "/api/vehicles", `{"id":"AMB003","call_sign":"A3","location":{"lat":22.3,"lng":73.1},"status":"busy"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("new vehicle must start available, got %d", rr.Code)
	}
	rr = serve(mux, http.MethodPost, "/api/vehicles", `{"id":"AMB003","call_sign":"A3","location":{"lat":22.3,"lng":73.1}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(mux, http.MethodGet, "/api/vehicles?status=available", "")
	var out []model.Vehicle
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 vehicles got %d", len(out))
	}
	if rr := serve(mux, http.MethodGet, "/api/vehicles?status=parked", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestHospitals(t *testing.T) {
	mux := newMux(t)
	rr := serve(mux, http.MethodPost, "/api/hospitals", `{"id":"HOSP001","name":"General","location":{"lat":22.3,"lng":73.2},"specialties":[" Trauma "],"load":40}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if rr := serve(mux, http.MethodPost, "/api/hospitals", `{"id":"HOSP002","location":{"lat":22.3,"lng":73.2}}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name got %d", rr.Code)
	}
	rr = serve(mux, http.MethodGet, "/api/hospitals", "")
	var hs []model.Hospital
	if err := json.Unmarshal(rr.Body.Bytes(), &hs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hs) != 1 || hs[0].Specialties[0] != "trauma" || hs[0].Load != 40 {
		t.Fatalf("unexpected hospitals %#v", hs)
	}
}
