package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/ers/core/metrics"
)

// PromSink exposes dispatch outcomes, hospital load and vehicle states as
// Prometheus metrics.
type PromSink struct {
	dispatches *prometheus.CounterVec
	distance   prometheus.Histogram
	score      prometheus.Histogram
	load       *prometheus.GaugeVec
	vehicles   *prometheus.CounterVec
	incidents  *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ers_dispatch_events_total",
			Help: "Dispatch decisions by hospital and outcome",
		}, []string{"hospital_id", "category", "outcome"}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ers_dispatch_vehicle_distance_km",
			Help:    "Distance from the chosen vehicle to the scene",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50},
		}),
		score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ers_dispatch_hospital_score",
			Help:    "Score of the chosen hospital",
			Buckets: prometheus.LinearBuckets(-50, 25, 8),
		}),
		load: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ers_hospital_load",
			Help: "Current hospital load",
		}, []string{"hospital_id"}),
		vehicles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ers_vehicle_status_changes_total",
			Help: "Vehicle status changes by target status",
		}, []string{"status"}),
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ers_incident_status_changes_total",
			Help: "Incident status changes by target status",
		}, []string{"status"}),
	}
	var err error
	if s.dispatches, err = register(reg, s.dispatches); err != nil {
		return nil, err
	}
	if s.distance, err = register(reg, s.distance); err != nil {
		return nil, err
	}
	if s.score, err = register(reg, s.score); err != nil {
		return nil, err
	}
	if s.load, err = register(reg, s.load); err != nil {
		return nil, err
	}
	if s.vehicles, err = register(reg, s.vehicles); err != nil {
		return nil, err
	}
	if s.incidents, err = register(reg, s.incidents); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDispatch counts the decision and observes distance and score of
// successful ones.
func (s *PromSink) RecordDispatch(ev coremetrics.DispatchEvent) error {
	outcome := "success"
	if ev.Failed() {
		outcome = ev.ErrorKind
	}
	cat := ev.Category
	if cat == "" {
		cat = "uncategorized"
	}
	s.dispatches.WithLabelValues(ev.HospitalID, cat, outcome).Inc()
	if !ev.Failed() {
		s.distance.Observe(ev.VehicleToSceneKm)
		s.score.Observe(ev.HospitalScore)
	}
	return nil
}

// RecordHospitalLoad sets the load gauge.
func (s *PromSink) RecordHospitalLoad(ev coremetrics.HospitalLoadEvent) error {
	s.load.WithLabelValues(ev.HospitalID).Set(float64(ev.Load))
	return nil
}

// RecordVehicleState counts transitions per target status.
func (s *PromSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	s.vehicles.WithLabelValues(string(ev.Status)).Inc()
	return nil
}

// RecordIncidentStatus counts incident transitions.
func (s *PromSink) RecordIncidentStatus(ev coremetrics.IncidentStatusEvent) error {
	s.incidents.WithLabelValues(string(ev.To)).Inc()
	return nil
}
