package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ers/core/eta"
	"github.com/kilianp07/ers/core/model"
)

var (
	from = model.Point{Lat: 22.30, Lng: 73.18}
	to   = model.Point{Lat: 22.31, Lng: 73.19}
)

func TestDurationParsesSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/directions/driving-car/geojson", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		var body directionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, [][2]float64{{73.18, 22.30}, {73.19, 22.31}}, body.Coordinates)
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[{"properties":{"summary":{"distance":1520.3,"duration":184.5}}}]}`))
	}))
	defer srv.Close()

	c, err := NewORSClient(Config{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	d, err := c.Duration(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 184500*time.Millisecond, d)
}

func TestDurationErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"quota"}`, http.StatusForbidden)
		},
		"no route": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"features":[]}`))
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			c, err := NewORSClient(Config{APIKey: "k"}, WithBaseURL(srv.URL))
			require.NoError(t, err)
			_, err = c.Duration(context.Background(), from, to)
			assert.Error(t, err)
		})
	}
}

func TestEstimatorTimesOutSlowProvider(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewORSClient(Config{APIKey: "k", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	est := (&eta.Estimator{Provider: c, Timeout: 50 * time.Millisecond}).Estimate(context.Background(), from, to)
	assert.Nil(t, est.Seconds)
	assert.True(t, model.IsKind(est.Err, model.KindExternalService))
}

func TestConfig(t *testing.T) {
	_, err := NewORSClient(Config{})
	assert.Error(t, err)
	_, err = NewORSClient(Config{APIKey: "k", BaseURL: "ftp://x"})
	assert.Error(t, err)
	_, err = NewORSClient(Config{APIKey: "k"}, WithHTTPClient(nil))
	assert.Error(t, err)
	cfg := Config{}
	cfg.SetDefaults()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.False(t, cfg.Enabled())
}
