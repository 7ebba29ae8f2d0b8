package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/ers/core/metrics"
	"github.com/kilianp07/ers/core/model"
	"github.com/kilianp07/ers/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	Org       string `json:"org"`
	Bucket    string `json:"bucket"`
	TimeoutMS int    `json:"timeout_ms"`
}

func (c InfluxConfig) timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// InfluxSink writes dispatch events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
	timeout  time.Duration
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.timeout()}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
		timeout:  cfg.timeout(),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDispatch writes one dispatch_event point per decision.
func (s *InfluxSink) RecordDispatch(ev coremetrics.DispatchEvent) error {
	outcome := "success"
	if ev.Failed() {
		outcome = ev.ErrorKind
	}
	p := write.NewPointWithMeasurement("dispatch_event").
		AddTag("incident_id", ev.IncidentID).
		AddTag("priority", string(ev.Priority)).
		AddTag("outcome", outcome)
	if ev.VehicleID != "" {
		p.AddTag("vehicle_id", ev.VehicleID)
	}
	if ev.HospitalID != "" {
		p.AddTag("hospital_id", ev.HospitalID)
	}
	p.AddField("attempts", ev.Attempts).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000))
	if !ev.Failed() {
		p.AddField("hospital_score", round3(ev.HospitalScore)).
			AddField("vehicle_to_scene_km", round3(ev.VehicleToSceneKm)).
			AddField("scene_to_hospital_km", round3(ev.SceneToHospitalKm))
		if ev.ETAToScene != nil {
			p.AddField("eta_to_scene_s", round3(*ev.ETAToScene))
		}
	}
	p.SetTime(ev.Time)
	return s.write(p)
}

// RecordVehicleState writes a snapshot of a vehicle.
func (s *InfluxSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	p := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("status", string(ev.Status))
	if ev.IncidentID != "" {
		p.AddTag("incident_id", ev.IncidentID)
	}
	if ev.Location.Valid() && (ev.Location.Lat != 0 || ev.Location.Lng != 0) {
		p.AddField("lat", ev.Location.Lat).AddField("lng", ev.Location.Lng)
	}
	p.AddField("busy", ev.Status != model.StatusAvailable).SetTime(ev.Time)
	return s.write(p)
}

// RecordHospitalLoad writes the new load and the applied delta.
func (s *InfluxSink) RecordHospitalLoad(ev coremetrics.HospitalLoadEvent) error {
	p := write.NewPointWithMeasurement("hospital_load").
		AddTag("hospital_id", ev.HospitalID).
		AddField("load", ev.Load).
		AddField("delta", ev.Delta).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordIncidentStatus writes an incident transition.
func (s *InfluxSink) RecordIncidentStatus(ev coremetrics.IncidentStatusEvent) error {
	p := write.NewPointWithMeasurement("incident_status").
		AddTag("incident_id", ev.IncidentID).
		AddTag("from", string(ev.From)).
		AddTag("to", string(ev.To)).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.write(p)
}

// Close flushes and releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
