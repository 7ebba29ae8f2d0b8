package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/ers/core/dispatch/logging"
	"github.com/kilianp07/ers/core/eta"
	"github.com/kilianp07/ers/core/events"
	"github.com/kilianp07/ers/core/metrics"
	"github.com/kilianp07/ers/core/model"
	"github.com/kilianp07/ers/core/scoring"
	"github.com/kilianp07/ers/core/store"
	"github.com/kilianp07/ers/core/vehiclestatus"
)

// errVehicleTaken aborts a commit whose chosen vehicle is no longer available.
var errVehicleTaken = errors.New("vehicle taken concurrently")

// NewIncident is the input of ReportIncident.
type NewIncident struct {
	PatientName   string      `json:"patient_name" validate:"max=200"`
	ContactNumber string      `json:"contact_number" validate:"max=32"`
	Description   string      `json:"description" validate:"max=2000"`
	Location      model.Point `json:"location"`
	Priority      string      `json:"priority"`
	Category      string      `json:"category" validate:"max=100"`
}

// Result describes a committed dispatch.
type Result struct {
	Incident          model.Incident `json:"incident"`
	Vehicle           model.Vehicle  `json:"vehicle"`
	Hospital          model.Hospital `json:"hospital"`
	VehicleToSceneKm  float64        `json:"vehicle_to_scene_km"`
	SceneToHospitalKm float64        `json:"scene_to_hospital_km"`
	HospitalScore     float64        `json:"hospital_score"`
	SpecialtyMatch    bool           `json:"specialty_match"`
	ETAToScene        *float64       `json:"eta_to_scene_s"`
	ETAToHospital     *float64       `json:"eta_to_hospital_s"`
	LoadDelta         int            `json:"load_delta"`
	Attempts          int            `json:"attempts"`
}

// ReportIncident validates and stores a new pending incident.
func (c *Coordinator) ReportIncident(ctx context.Context, in NewIncident) (model.Incident, error) {
	if err := c.validate.Struct(in); err != nil {
		return model.Incident{}, model.Validation(err.Error())
	}
	if !in.Location.Valid() {
		return model.Incident{}, model.Validation(fmt.Sprintf("invalid incident location %s", in.Location))
	}
	prio, err := model.ParsePriority(in.Priority)
	if err != nil {
		return model.Incident{}, err
	}
	now := c.clock()
	inc := model.Incident{
		ID:            uuid.NewString(),
		PatientName:   strings.TrimSpace(in.PatientName),
		ContactNumber: strings.TrimSpace(in.ContactNumber),
		Description:   strings.TrimSpace(in.Description),
		Location:      in.Location,
		Priority:      prio,
		Category:      strings.TrimSpace(in.Category),
		Status:        model.IncidentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.store.Update(ctx, func(tx store.Tx) error {
		return tx.PutIncident(inc)
	}); err != nil {
		c.capture("report", err)
		return model.Incident{}, err
	}
	c.log.Infof("incident %s reported (%s, %s)", inc.ID, inc.Priority, inc.Category)
	c.pub.Publish(events.IncidentReported{Incident: events.SummarizeIncident(inc), At: now})
	return inc, nil
}

// snapshot is the read-only view a dispatch attempt is scored on.
type snapshot struct {
	incident  model.Incident
	vehicles  []model.Vehicle
	hospitals []model.Hospital
}

func (c *Coordinator) readSnapshot(ctx context.Context, incidentID string) (snapshot, error) {
	var s snapshot
	err := c.store.View(ctx, func(r store.Reader) error {
		inc, err := r.Incident(incidentID)
		if err != nil {
			return err
		}
		if err := checkPending(inc); err != nil {
			return err
		}
		vs, err := r.Vehicles(store.VehicleFilter{Statuses: []model.VehicleStatus{model.StatusAvailable}})
		if err != nil {
			return err
		}
		hs, err := r.Hospitals()
		if err != nil {
			return err
		}
		s = snapshot{incident: inc, vehicles: vs, hospitals: hs}
		return nil
	})
	return s, err
}

func checkPending(inc model.Incident) error {
	if inc.Status != model.IncidentPending {
		return model.Wrap(model.KindInvalidState, model.ErrIncidentAlreadyHandled,
			fmt.Sprintf("incident %s is %s", inc.ID, inc.Status))
	}
	return nil
}

// Dispatch assigns the best available vehicle and hospital to a pending
// incident. Scoring runs on a snapshot; the assignment is committed in one
// transaction that re-checks both the incident and the vehicle. When the
// vehicle was taken in between, the incident is re-scored up to
// MaxAssignRetries times. A failed dispatch changes nothing.
func (c *Coordinator) Dispatch(ctx context.Context, incidentID string) (Result, error) {
	start := time.Now()
	res, prio, err := c.dispatch(ctx, incidentID)
	c.recordDispatch(ctx, incidentID, prio, res, err, time.Since(start))
	return res, err
}

//gocyclo:ignore
func (c *Coordinator) dispatch(ctx context.Context, incidentID string) (Result, model.Priority, error) {
	var (
		res   Result
		prio  model.Priority
		taken = map[string]bool{}
	)
	est := c.currentEstimator()
	for attempt := 1; attempt <= c.cfg.retries()+1; attempt++ {
		res.Attempts = attempt
		snap, err := c.readSnapshot(ctx, incidentID)
		if err != nil {
			return res, prio, err
		}
		inc := snap.incident
		prio = inc.Priority
		hc, err := c.engine.FindBestHospital(inc.Location, inc.Category, inc.Priority, snap.hospitals)
		if err != nil {
			return res, prio, err
		}
		var candidates []model.Vehicle
		for _, v := range snap.vehicles {
			if !taken[v.ID] {
				candidates = append(candidates, v)
			}
		}
		vc, err := c.engine.FindBestVehicle(inc.Location, candidates)
		if err != nil {
			return res, prio, err
		}
		// network lookups stay outside the transaction
		toScene := est.Estimate(ctx, vc.Vehicle.Location, inc.Location)
		toHospital := toScene.Add(est.Estimate(ctx, inc.Location, hc.Hospital.Location))

		cm, err := c.commitAssignment(ctx, inc.ID, vc.Vehicle.ID, hc.Hospital.ID, toScene)
		if errors.Is(err, errVehicleTaken) {
			taken[vc.Vehicle.ID] = true
			reassignments.Inc()
			c.log.Warnf("vehicle %s was taken before incident %s committed, re-scoring", vc.Vehicle.ID, inc.ID)
			continue
		}
		if err != nil {
			return res, prio, err
		}
		res = Result{
			Incident:          cm.incident,
			Vehicle:           cm.vehicle,
			Hospital:          cm.hospital,
			VehicleToSceneKm:  vc.DistanceKm,
			SceneToHospitalKm: hc.DistanceKm,
			HospitalScore:     hc.Score,
			SpecialtyMatch:    hc.Specialty,
			ETAToScene:        toScene.Seconds,
			ETAToHospital:     toHospital.Seconds,
			LoadDelta:         cm.applied,
			Attempts:          attempt,
		}
		c.publishDispatch(res, cm)
		return res, prio, nil
	}
	return res, prio, model.Wrap(model.KindNoCapacity, model.ErrNoVehicleAvailable,
		fmt.Sprintf("incident %s: every candidate was taken after %d attempts", incidentID, res.Attempts))
}

type commit struct {
	incident   model.Incident
	vehicle    model.Vehicle
	hospital   model.Hospital
	applied    int
	loadChange bool
	at         time.Time
}

func (c *Coordinator) commitAssignment(ctx context.Context, incidentID, vehicleID, hospitalID string, toScene eta.Estimate) (commit, error) {
	var cm commit
	now := c.clock()
	err := c.store.Update(ctx, func(tx store.Tx) error {
		inc, err := tx.Incident(incidentID)
		if err != nil {
			return err
		}
		if err := checkPending(inc); err != nil {
			return err
		}
		v, err := tx.Vehicle(vehicleID)
		if err != nil {
			return err
		}
		if v.Status != model.StatusAvailable {
			return errVehicleTaken
		}
		h, err := tx.Hospital(hospitalID)
		if err != nil {
			return err
		}
		applied := 0
		if c.cfg.LoadPolicy == LoadOnDispatch {
			a, load, err := tx.AdjustHospitalLoad(h.ID, c.cfg.increment(), c.cfg.MaxLoad)
			if err != nil {
				return err
			}
			applied, h.Load = a, load
			cm.loadChange = true
		}
		dest := model.ToIncident(inc.Location, h.ID, h.Location, applied)
		dest.ETASeconds = toScene.Seconds
		if err := vehiclestatus.Assign(&v, inc.ID, dest); err != nil {
			return err
		}
		v.UpdatedAt = now
		if err := vehiclestatus.AdvanceIncident(&inc, model.IncidentDispatched); err != nil {
			return err
		}
		inc.AssignedVehicle = v.ID
		inc.UpdatedAt = now
		if err := tx.PutVehicle(v); err != nil {
			return err
		}
		if err := tx.PutIncident(inc); err != nil {
			return err
		}
		cm = commit{incident: inc, vehicle: v, hospital: h, applied: applied, loadChange: cm.loadChange, at: now}
		return nil
	})
	return cm, err
}

func (c *Coordinator) publishDispatch(res Result, cm commit) {
	vehicleTransitions.WithLabelValues(string(vehiclestatus.TriggerAssign)).Inc()
	c.log.Infof("incident %s dispatched: vehicle %s (%.2f km), hospital %s (score %.1f)",
		res.Incident.ID, res.Vehicle.Label(), res.VehicleToSceneKm, res.Hospital.ID, res.HospitalScore)
	c.pub.Publish(events.Dispatched{
		Incident:          events.SummarizeIncident(res.Incident),
		Vehicle:           events.SummarizeVehicle(res.Vehicle),
		Hospital:          events.SummarizeHospital(res.Hospital),
		VehicleToSceneKm:  res.VehicleToSceneKm,
		SceneToHospitalKm: res.SceneToHospitalKm,
		HospitalScore:     res.HospitalScore,
		ETAToScene:        res.ETAToScene,
		ETAToHospital:     res.ETAToHospital,
		At:                cm.at,
	})
	c.pub.Publish(events.VehicleStatusChanged{
		VehicleID:  res.Vehicle.ID,
		IncidentID: res.Incident.ID,
		From:       model.StatusAvailable,
		To:         res.Vehicle.Status,
		At:         cm.at,
	})
	c.pub.Publish(events.IncidentStatusChanged{
		IncidentID: res.Incident.ID,
		VehicleID:  res.Vehicle.ID,
		From:       model.IncidentPending,
		To:         res.Incident.Status,
		At:         cm.at,
	})
	if cm.loadChange {
		c.pub.Publish(events.HospitalLoadChanged{
			HospitalID: res.Hospital.ID,
			Load:       res.Hospital.Load,
			Delta:      cm.applied,
			At:         cm.at,
		})
	}
}

// recordDispatch feeds the journal, the metrics sink and the collectors.
func (c *Coordinator) recordDispatch(ctx context.Context, incidentID string, prio model.Priority, res Result, err error, took time.Duration) {
	outcome := "success"
	kind := ""
	if err != nil {
		kind = string(model.KindOf(err))
		outcome = kind
		c.log.Warnf("dispatch %s failed: %v", incidentID, err)
		c.capture("dispatch", err)
	}
	dispatchAttempts.WithLabelValues(string(prio), outcome).Inc()
	dispatchLatency.Observe(took.Seconds())

	rec := logging.LogRecord{
		Timestamp:         c.clock(),
		IncidentID:        incidentID,
		Priority:          string(prio),
		Category:          res.Incident.Category,
		ScoringMode:       string(c.engine.Mode),
		VehicleID:         res.Vehicle.ID,
		HospitalID:        res.Hospital.ID,
		HospitalScore:     res.HospitalScore,
		VehicleToSceneKm:  res.VehicleToSceneKm,
		SceneToHospitalKm: res.SceneToHospitalKm,
		ETAToSceneSeconds: res.ETAToScene,
		LoadDelta:         res.LoadDelta,
		Attempts:          res.Attempts,
		ErrorKind:         kind,
	}
	if rec.ScoringMode == "" {
		rec.ScoringMode = string(scoring.ModeAdditive)
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if jerr := c.Journal().Append(ctx, rec); jerr != nil {
		c.log.Errorf("dispatch journal error: %v", jerr)
	}
	if merr := c.metricsSink().RecordDispatch(metrics.DispatchEvent{
		IncidentID:        incidentID,
		VehicleID:         res.Vehicle.ID,
		HospitalID:        res.Hospital.ID,
		Priority:          prio,
		Category:          res.Incident.Category,
		HospitalScore:     res.HospitalScore,
		VehicleToSceneKm:  res.VehicleToSceneKm,
		SceneToHospitalKm: res.SceneToHospitalKm,
		ETAToScene:        res.ETAToScene,
		Duration:          took,
		Attempts:          res.Attempts,
		ErrorKind:         kind,
		Time:              rec.Timestamp,
	}); merr != nil {
		c.log.Errorf("metrics error: %v", merr)
	}
}
