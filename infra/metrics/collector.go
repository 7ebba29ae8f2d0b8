package metrics

import (
	"context"

	"github.com/kilianp07/ers/core/events"
	coremetrics "github.com/kilianp07/ers/core/metrics"
	"github.com/kilianp07/ers/infra/logger"
	"github.com/kilianp07/ers/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and feeds lifecycle events
// to the recorders the sink implements. It stops when the context is
// canceled or the bus is closed; the returned channel is closed then.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.SubscribeN(256)
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %s: %v", ev.EventName(), err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.VehicleStatusChanged:
		if r, ok := sink.(coremetrics.VehicleStateRecorder); ok {
			return r.RecordVehicleState(coremetrics.VehicleStateEvent{
				VehicleID:  e.VehicleID,
				Status:     e.To,
				IncidentID: e.IncidentID,
				Time:       e.At,
			})
		}
	case events.HospitalLoadChanged:
		if r, ok := sink.(coremetrics.HospitalLoadRecorder); ok {
			return r.RecordHospitalLoad(coremetrics.HospitalLoadEvent{
				HospitalID: e.HospitalID,
				Load:       e.Load,
				Delta:      e.Delta,
				Time:       e.At,
			})
		}
	case events.IncidentStatusChanged:
		if r, ok := sink.(coremetrics.IncidentStatusRecorder); ok {
			return r.RecordIncidentStatus(coremetrics.IncidentStatusEvent{
				IncidentID: e.IncidentID,
				From:       e.From,
				To:         e.To,
				Time:       e.At,
			})
		}
	}
	return nil
}
