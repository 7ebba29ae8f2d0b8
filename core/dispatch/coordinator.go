// Package dispatch assigns ambulances and hospitals to incidents and drives
// every later lifecycle step. All state changes run inside store
// transactions; events, journal records and metrics are emitted after the
// commit.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/ers/core/dispatch/logging"
	"github.com/kilianp07/ers/core/eta"
	"github.com/kilianp07/ers/core/events"
	"github.com/kilianp07/ers/core/logger"
	"github.com/kilianp07/ers/core/metrics"
	"github.com/kilianp07/ers/core/model"
	"github.com/kilianp07/ers/core/monitoring"
	"github.com/kilianp07/ers/core/scoring"
	"github.com/kilianp07/ers/core/store"
)

// Coordinator owns dispatch decisions and lifecycle transitions.
type Coordinator struct {
	store    store.Store
	pub      events.Publisher
	log      logger.Logger
	cfg      Config
	engine   scoring.Engine
	validate *validator.Validate

	mu        sync.RWMutex
	estimator *eta.Estimator
	journal   logging.LogStore
	sink      metrics.MetricsSink
	now       func() time.Time
}

// NewCoordinator creates a coordinator. A nil publisher discards events and
// a nil logger discards logs. Travel times default to straight-line
// estimates until SetETAProvider is called.
func NewCoordinator(st store.Store, pub events.Publisher, cfg Config, log logger.Logger) (*Coordinator, error) {
	if st == nil {
		return nil, fmt.Errorf("dispatch: nil store provided to NewCoordinator")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := scoring.ParseMode(cfg.ScoringMode)
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	c := &Coordinator{
		store:    st,
		pub:      pub,
		log:      log,
		cfg:      cfg,
		engine:   scoring.New(mode, cfg.Categories),
		validate: validator.New(),
		journal:  logging.NopStore{},
		sink:     metrics.NopSink{},
		now:      time.Now,
	}
	c.estimator = &eta.Estimator{AvgSpeedKmh: cfg.AvgSpeedKmh, Logger: log}
	return c, nil
}

// SetETAProvider routes travel time lookups through p.
func (c *Coordinator) SetETAProvider(p eta.Provider) {
	est := &eta.Estimator{
		Provider:        p,
		Timeout:         c.cfg.ETATimeout(),
		AvgSpeedKmh:     c.cfg.AvgSpeedKmh,
		FallbackOnError: c.cfg.FallbackETAOnError,
		Logger:          c.log,
		OnFailure: func(err error) {
			etaFailures.Inc()
			monitoring.CaptureException(err, map[string]string{"component": "eta"})
		},
	}
	c.mu.Lock()
	c.estimator = est
	c.mu.Unlock()
}

// SetJournal configures the store used to persist dispatch decisions.
func (c *Coordinator) SetJournal(j logging.LogStore) {
	if j == nil {
		j = logging.NopStore{}
	}
	c.mu.Lock()
	c.journal = j
	c.mu.Unlock()
}

// SetMetricsSink configures the sink receiving dispatch outcomes.
func (c *Coordinator) SetMetricsSink(s metrics.MetricsSink) {
	if s == nil {
		s = metrics.NopSink{}
	}
	c.mu.Lock()
	c.sink = s
	c.mu.Unlock()
}

// SetClock overrides the time source.
func (c *Coordinator) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// Engine returns the scoring engine in use.
func (c *Coordinator) Engine() scoring.Engine { return c.engine }

// Journal returns the configured dispatch journal.
func (c *Coordinator) Journal() logging.LogStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.journal
}

// Close releases the journal.
func (c *Coordinator) Close() error {
	return c.Journal().Close()
}

func (c *Coordinator) clock() time.Time {
	c.mu.RLock()
	now := c.now
	c.mu.RUnlock()
	return now()
}

func (c *Coordinator) currentEstimator() *eta.Estimator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.estimator
}

func (c *Coordinator) metricsSink() metrics.MetricsSink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sink
}

// capture reports unexpected failures to the monitor.
func (c *Coordinator) capture(op string, err error) {
	if err == nil || model.KindOf(err) != model.KindInternal {
		return
	}
	c.log.Errorf("%s: %v", op, err)
	monitoring.CaptureException(err, map[string]string{"component": "dispatch", "op": op})
}
