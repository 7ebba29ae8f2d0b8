package simulation

import (
	"fmt"
	"time"
)

// Config defines the movement simulation settings.
type Config struct {
	Enabled            bool    `json:"enabled"`
	TickMS             int     `json:"tick_ms"`
	StepDegrees        float64 `json:"step_degrees"`
	ArrivalThresholdKm float64 `json:"arrival_threshold_km"`
	// HospitalDwellMS delays completion after hospital arrival. Zero
	// completes in the same tick.
	HospitalDwellMS int `json:"hospital_dwell_ms"`
	// AutoTransportAfterMS starts the hospital leg automatically once a
	// vehicle has been on scene that long. Zero leaves it to the operator.
	AutoTransportAfterMS int  `json:"auto_transport_after_ms"`
	ManualCompletion     bool `json:"manual_completion"`
	Workers              int  `json:"workers"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TickMS == 0 {
		c.TickMS = 3000
	}
	if c.StepDegrees == 0 {
		c.StepDegrees = 0.0005
	}
	if c.ArrivalThresholdKm == 0 {
		c.ArrivalThresholdKm = 0.05
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
}

// Validate checks configuration values.
func (c Config) Validate() error {
	if c.TickMS <= 0 {
		return fmt.Errorf("simulation: tick_ms must be positive")
	}
	if c.StepDegrees <= 0 {
		return fmt.Errorf("simulation: step_degrees must be positive")
	}
	if c.ArrivalThresholdKm <= 0 {
		return fmt.Errorf("simulation: arrival_threshold_km must be positive")
	}
	if c.HospitalDwellMS < 0 || c.AutoTransportAfterMS < 0 {
		return fmt.Errorf("simulation: delays cannot be negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("simulation: workers must be positive")
	}
	return nil
}

func (c Config) tick() time.Duration { return time.Duration(c.TickMS) * time.Millisecond }

func (c Config) dwell() time.Duration { return time.Duration(c.HospitalDwellMS) * time.Millisecond }

func (c Config) autoTransport() time.Duration {
	return time.Duration(c.AutoTransportAfterMS) * time.Millisecond
}
