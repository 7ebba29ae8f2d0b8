// Package simulation moves dispatched vehicles toward their current leg on
// a fixed tick and feeds arrivals back into the dispatch lifecycle.
package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/ers/core/dispatch"
	"github.com/kilianp07/ers/core/events"
	"github.com/kilianp07/ers/core/geo"
	"github.com/kilianp07/ers/core/logger"
	"github.com/kilianp07/ers/core/model"
	"github.com/kilianp07/ers/core/monitoring"
)

// Dispatcher is the part of the dispatch coordinator the simulator drives.
type Dispatcher interface {
	Vehicles(ctx context.Context, statuses ...model.VehicleStatus) ([]model.Vehicle, error)
	RelocateVehicle(ctx context.Context, vehicleID string, expect model.VehicleStatus, p model.Point) (model.Vehicle, error)
	MarkArrived(ctx context.Context, ref dispatch.Ref) (dispatch.Transition, error)
	MarkTransporting(ctx context.Context, ref dispatch.Ref) (dispatch.Transition, error)
	MarkArrivedAtHospital(ctx context.Context, ref dispatch.Ref) (dispatch.Transition, error)
	CompleteDispatch(ctx context.Context, ref dispatch.Ref) (dispatch.Transition, error)
}

// Outcome classifies what happened to one vehicle during a tick.
type Outcome string

const (
	OutcomeMoved      Outcome = "moved"
	OutcomeArrived    Outcome = "arrived"
	OutcomeStationary Outcome = "stationary"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Report summarises one tick.
type Report struct {
	Counts    map[Outcome]int
	Completed int
	Locations []events.VehicleLocationChanged
	Errors    []error
}

// Simulator advances every active vehicle once per tick.
type Simulator struct {
	d   Dispatcher
	pub events.Publisher
	log logger.Logger
	cfg Config

	clockMu sync.RWMutex
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]*time.Timer
	timers  sync.WaitGroup
}

// New creates a simulator.
func New(d Dispatcher, pub events.Publisher, cfg Config, log logger.Logger) (*Simulator, error) {
	if d == nil {
		return nil, fmt.Errorf("simulation: nil dispatcher provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Simulator{d: d, pub: pub, log: log, cfg: cfg, now: time.Now, pending: map[string]*time.Timer{}}, nil
}

// SetClock overrides the time source.
func (s *Simulator) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.clockMu.Lock()
	s.now = now
	s.clockMu.Unlock()
}

func (s *Simulator) clock() time.Time {
	s.clockMu.RLock()
	now := s.now
	s.clockMu.RUnlock()
	return now()
}

// Run ticks until ctx is cancelled, then stops pending dwell timers and
// waits for the ones already firing.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.tick())
	defer ticker.Stop()
	s.log.Infof("simulation started (tick %v)", s.cfg.tick())
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.log.Infof("simulation stopped")
			return
		case <-ticker.C:
			rep, err := s.Tick(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Errorf("simulation tick: %v", err)
				}
				continue
			}
			if len(rep.Locations) > 0 {
				s.log.Debugw("simulation tick", map[string]any{
					"moved":     rep.Counts[OutcomeMoved],
					"arrived":   rep.Counts[OutcomeArrived],
					"completed": rep.Completed,
					"failed":    rep.Counts[OutcomeFailed],
				})
			}
		}
	}
}

var activeStatuses = []model.VehicleStatus{
	model.StatusDispatched,
	model.StatusArrivedAtEmergency,
	model.StatusTransporting,
	model.StatusArrivedAtHospital,
}

type stepResult struct {
	outcome   Outcome
	completed bool
	loc       *events.VehicleLocationChanged
	err       error
}

// Tick advances every active vehicle once. Per-vehicle failures are logged,
// reported and counted; they never abort the tick.
func (s *Simulator) Tick(ctx context.Context) (Report, error) {
	rep := Report{Counts: map[Outcome]int{}}
	vs, err := s.d.Vehicles(ctx, activeStatuses...)
	if err != nil {
		return rep, err
	}
	results := make([]stepResult, len(vs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i := range vs {
		g.Go(func() error {
			results[i] = s.safeStep(ctx, vs[i])
			return nil
		})
	}
	_ = g.Wait()

	at := s.clock()
	for i, r := range results {
		rep.Counts[r.outcome]++
		if r.completed {
			rep.Completed++
		}
		if r.err != nil {
			rep.Errors = append(rep.Errors, r.err)
			s.log.Errorf("simulate vehicle %s: %v", vs[i].ID, r.err)
			monitoring.CaptureException(r.err, map[string]string{"component": "simulation", "vehicle_id": vs[i].ID})
		}
		if r.loc != nil {
			s.pub.Publish(*r.loc)
			rep.Locations = append(rep.Locations, *r.loc)
		}
	}
	if len(rep.Locations) > 0 {
		s.pub.Publish(events.VehicleLocationsBatch{Vehicles: rep.Locations, At: at})
	}
	return rep, nil
}

func (s *Simulator) safeStep(ctx context.Context, v model.Vehicle) (res stepResult) {
	defer func() {
		if r := recover(); r != nil {
			res = stepResult{outcome: OutcomeFailed, err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return s.step(ctx, v)
}

func ref(v model.Vehicle) dispatch.Ref {
	return dispatch.Ref{VehicleID: v.ID, IncidentID: v.CurrentIncident}
}

func (s *Simulator) location(v model.Vehicle, speed float64) *events.VehicleLocationChanged {
	return &events.VehicleLocationChanged{
		VehicleID:  v.ID,
		CallSign:   v.CallSign,
		IncidentID: v.CurrentIncident,
		Status:     v.Status,
		Location:   v.Location,
		SpeedKmh:   speed,
		At:         s.clock(),
	}
}

//gocyclo:ignore
func (s *Simulator) step(ctx context.Context, v model.Vehicle) stepResult {
	switch v.Status {
	case model.StatusArrivedAtEmergency:
		res := stepResult{outcome: OutcomeStationary, loc: s.location(v, 0)}
		if after := s.cfg.autoTransport(); after > 0 && s.clock().Sub(v.UpdatedAt) >= after {
			tr, err := s.d.MarkTransporting(ctx, ref(v))
			if err != nil {
				return s.transitionFailed(v, res, err)
			}
			res.loc = s.location(tr.Vehicle, 0)
		}
		return res
	case model.StatusArrivedAtHospital:
		res := stepResult{outcome: OutcomeStationary, loc: s.location(v, 0)}
		done, err := s.completeOrSchedule(ctx, v)
		if err != nil {
			return s.transitionFailed(v, res, err)
		}
		res.completed = done
		return res
	case model.StatusDispatched, model.StatusTransporting:
	default:
		return stepResult{outcome: OutcomeSkipped}
	}

	dest := v.Destination
	if dest == nil {
		s.log.Warnf("vehicle %s is %s without a destination, skipping", v.ID, v.Status)
		return stepResult{outcome: OutcomeSkipped}
	}
	if err := dest.Validate(); err != nil {
		s.log.Warnf("vehicle %s has an invalid destination, skipping: %v", v.ID, err)
		return stepResult{outcome: OutcomeSkipped}
	}
	hours := s.cfg.tick().Hours()
	remaining := geo.DistanceKm(v.Location, dest.Point)
	if remaining < s.cfg.ArrivalThresholdKm {
		moved, err := s.d.RelocateVehicle(ctx, v.ID, v.Status, dest.Point)
		if err != nil {
			return s.transitionFailed(v, stepResult{outcome: OutcomeSkipped}, err)
		}
		arrive := s.d.MarkArrived
		if v.Status == model.StatusTransporting {
			arrive = s.d.MarkArrivedAtHospital
		}
		tr, err := arrive(ctx, ref(moved))
		if err != nil {
			return s.transitionFailed(v, stepResult{outcome: OutcomeSkipped, loc: s.location(moved, 0)}, err)
		}
		res := stepResult{outcome: OutcomeArrived, loc: s.location(tr.Vehicle, remaining/hours)}
		if tr.Vehicle.Status == model.StatusArrivedAtHospital {
			done, err := s.completeOrSchedule(ctx, tr.Vehicle)
			if err != nil {
				return s.transitionFailed(v, res, err)
			}
			res.completed = done
		}
		return res
	}

	next := geo.MoveToward(v.Location, dest.Point, s.cfg.StepDegrees)
	moved, err := s.d.RelocateVehicle(ctx, v.ID, v.Status, next)
	if err != nil {
		return s.transitionFailed(v, stepResult{outcome: OutcomeSkipped}, err)
	}
	return stepResult{outcome: OutcomeMoved, loc: s.location(moved, geo.DistanceKm(v.Location, next)/hours)}
}

// transitionFailed treats a concurrent status change as a skip and any
// other error as a failure.
func (s *Simulator) transitionFailed(v model.Vehicle, res stepResult, err error) stepResult {
	if model.IsKind(err, model.KindInvalidState) {
		s.log.Debugf("vehicle %s changed state during tick: %v", v.ID, err)
		return res
	}
	res.outcome = OutcomeFailed
	res.err = err
	return res
}

// completeOrSchedule finishes a hospital arrival now or after the dwell.
// It reports whether the dispatch was completed synchronously.
func (s *Simulator) completeOrSchedule(ctx context.Context, v model.Vehicle) (bool, error) {
	if s.cfg.ManualCompletion {
		return false, nil
	}
	dwell := s.cfg.dwell()
	if dwell <= 0 {
		if _, err := s.d.CompleteDispatch(ctx, ref(v)); err != nil {
			return false, err
		}
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[v.ID]; ok {
		return false, nil
	}
	r := ref(v)
	s.timers.Add(1)
	s.pending[v.ID] = time.AfterFunc(dwell, func() {
		defer s.timers.Done()
		defer s.forget(v.ID)
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// the vehicle may have been completed or cancelled meanwhile
		if _, err := s.d.CompleteDispatch(cctx, r); err != nil {
			if model.IsKind(err, model.KindInvalidState) {
				s.log.Debugf("dwell completion for %s skipped: %v", v.ID, err)
				return
			}
			s.log.Errorf("dwell completion for %s: %v", v.ID, err)
			monitoring.CaptureException(err, map[string]string{"component": "simulation", "vehicle_id": v.ID})
		}
	})
	return false, nil
}

func (s *Simulator) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Pending returns the number of scheduled dwell completions.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Simulator) shutdown() {
	s.mu.Lock()
	for id, t := range s.pending {
		if t.Stop() {
			s.timers.Done()
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()
	s.timers.Wait()
}
