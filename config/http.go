package config

import "fmt"

// HTTPConfig defines the listen addresses of the API and metrics servers.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// MetricsAddr serves /metrics. Empty disables the endpoint.
	MetricsAddr       string `json:"metrics_addr"`
	ReadTimeoutMS     int    `json:"read_timeout_ms"`
	WriteTimeoutMS    int    `json:"write_timeout_ms"`
	ShutdownTimeoutMS int    `json:"shutdown_timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutMS == 0 {
		c.ReadTimeoutMS = 10000
	}
	if c.WriteTimeoutMS == 0 {
		c.WriteTimeoutMS = 10000
	}
	if c.ShutdownTimeoutMS == 0 {
		c.ShutdownTimeoutMS = 5000
	}
}

// Validate checks the timeouts.
func (c HTTPConfig) Validate() error {
	if c.ReadTimeoutMS < 0 || c.WriteTimeoutMS < 0 || c.ShutdownTimeoutMS < 0 {
		return fmt.Errorf("http: timeouts cannot be negative")
	}
	if c.MetricsAddr != "" && c.MetricsAddr == c.Addr {
		return fmt.Errorf("http: metrics_addr must differ from addr")
	}
	return nil
}
