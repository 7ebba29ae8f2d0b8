package mqtt

import (
	"fmt"
	"testing"
	"time"

	"github.com/kilianp07/ers/core/events"
	coremon "github.com/kilianp07/ers/core/monitoring"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestSendErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})
	p := newTestPublisher(t, mc, Config{MaxRetries: 1, BackoffMS: 1})

	if err := p.Send(events.VehicleStatusChanged{VehicleID: "AMB001"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected 2 attempts got %d", len(mc.published))
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["event"] != events.NameVehicleStatusChanged || mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
	if _, failed := p.Stats(); failed != 1 {
		t.Fatalf("expected 1 failure got %d", failed)
	}
}
