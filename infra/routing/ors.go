// Package routing implements eta.Provider on the OpenRouteService
// directions API.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/ers/core/model"
)

const (
	DefaultBaseURL = "https://api.openrouteservice.org"
	DefaultProfile = "driving-car"
)

// Config selects the ORS endpoint. An empty APIKey disables the provider.
type Config struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	Profile   string `json:"profile"`
	TimeoutMS int    `json:"timeout_ms"`
}

// Enabled reports whether an API key is configured.
func (c Config) Enabled() bool { return c.APIKey != "" }

func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Profile == "" {
		c.Profile = DefaultProfile
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 5000
	}
}

func (c Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("routing: base_url %q must be http(s)", c.BaseURL)
	}
	return nil
}

// Option customises an ORSClient.
type Option func(*ORSClient) error

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ORSClient) error {
		if hc == nil {
			return fmt.Errorf("routing: nil http client")
		}
		c.http = hc
		return nil
	}
}

// WithBaseURL points the client at another ORS instance.
func WithBaseURL(u string) Option {
	return func(c *ORSClient) error {
		c.baseURL = strings.TrimRight(u, "/")
		return nil
	}
}

// ORSClient asks OpenRouteService for driving durations.
type ORSClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
	profile string
}

// NewORSClient builds a client from cfg and options.
func NewORSClient(cfg Config, opts ...Option) (*ORSClient, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("routing: api_key is required")
	}
	c := &ORSClient{
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		profile: cfg.Profile,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type directionsRequest struct {
	// ORS expects [lng, lat] pairs.
	Coordinates [][2]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Properties struct {
			Summary struct {
				Duration float64 `json:"duration"`
				Distance float64 `json:"distance"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

// Duration returns the driving time between two points.
func (c *ORSClient) Duration(ctx context.Context, from, to model.Point) (time.Duration, error) {
	body, err := json.Marshal(directionsRequest{Coordinates: [][2]float64{{from.Lng, from.Lat}, {to.Lng, to.Lat}}})
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}
	url := fmt.Sprintf("%s/v2/directions/%s/geojson", c.baseURL, c.profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(dr.Features) == 0 {
		return 0, fmt.Errorf("no route between %s and %s", from, to)
	}
	secs := dr.Features[0].Properties.Summary.Duration
	if secs < 0 {
		return 0, fmt.Errorf("negative duration %v", secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
