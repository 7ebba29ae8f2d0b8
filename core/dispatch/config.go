package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/ers/core/model"
	"github.com/kilianp07/ers/core/scoring"
)

// LoadPolicy selects when the hospital load increment is applied.
type LoadPolicy string

const (
	// LoadOnDispatch reserves capacity as soon as the vehicle is assigned.
	LoadOnDispatch LoadPolicy = "dispatch"
	// LoadOnArrival applies the increment when the patient reaches the hospital.
	LoadOnArrival LoadPolicy = "arrival"
)

// Config defines dispatch-related settings.
type Config struct {
	ScoringMode string     `json:"scoring_mode"`
	LoadPolicy  LoadPolicy `json:"load_policy"`
	// LoadIncrement is applied to the chosen hospital. Nil means 1; an
	// explicit 0 disables load accounting on assignment.
	LoadIncrement *int `json:"load_increment"`
	// LoadDecrement is a flat amount released on completion. Zero releases
	// exactly what was applied for the dispatch.
	LoadDecrement      int     `json:"load_decrement"`
	MaxLoad            int     `json:"max_load"`
	AvgSpeedKmh        float64 `json:"avg_speed_kmh"`
	ETATimeoutMS       int     `json:"eta_timeout_ms"`
	FallbackETAOnError bool    `json:"fallback_eta_on_error"`
	// MaxAssignRetries bounds re-scoring after a lost race. Nil means 3; 0
	// fails on the first lost race.
	MaxAssignRetries *int              `json:"max_assign_retries"`
	Categories       map[string]string `json:"categories"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ScoringMode == "" {
		c.ScoringMode = string(scoring.ModeAdditive)
	}
	if c.LoadPolicy == "" {
		c.LoadPolicy = LoadOnDispatch
	}
	if c.LoadIncrement == nil {
		c.LoadIncrement = intPtr(1)
	}
	if c.MaxLoad == 0 {
		c.MaxLoad = model.DefaultMaxLoad
	}
	if c.AvgSpeedKmh == 0 {
		c.AvgSpeedKmh = 40
	}
	if c.ETATimeoutMS == 0 {
		c.ETATimeoutMS = 3000
	}
	if c.MaxAssignRetries == nil {
		c.MaxAssignRetries = intPtr(3)
	}
}

// Validate checks configuration values.
func (c Config) Validate() error {
	if _, err := scoring.ParseMode(c.ScoringMode); err != nil {
		return err
	}
	switch c.LoadPolicy {
	case LoadOnDispatch, LoadOnArrival:
	default:
		return fmt.Errorf("dispatch: unknown load_policy %q", c.LoadPolicy)
	}
	if c.increment() < 0 || c.LoadDecrement < 0 {
		return fmt.Errorf("dispatch: load increments must be positive")
	}
	if c.MaxLoad < 0 {
		return fmt.Errorf("dispatch: max_load must be positive")
	}
	if c.AvgSpeedKmh < 0 {
		return fmt.Errorf("dispatch: avg_speed_kmh must be positive")
	}
	if c.retries() < 0 {
		return fmt.Errorf("dispatch: max_assign_retries must be positive")
	}
	return nil
}

// ETATimeout returns the provider lookup timeout.
func (c Config) ETATimeout() time.Duration {
	return time.Duration(c.ETATimeoutMS) * time.Millisecond
}

func (c Config) increment() int {
	if c.LoadIncrement == nil {
		return 1
	}
	return *c.LoadIncrement
}

func (c Config) retries() int {
	if c.MaxAssignRetries == nil {
		return 3
	}
	return *c.MaxAssignRetries
}

func intPtr(v int) *int { return &v }
