package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordDispatch(ev DispatchEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatch(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordVehicleState forwards vehicle snapshots to the sinks that support them.
func (m *MultiSink) RecordVehicleState(ev VehicleStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(VehicleStateRecorder); ok {
			if err := rec.RecordVehicleState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordHospitalLoad forwards load changes.
func (m *MultiSink) RecordHospitalLoad(ev HospitalLoadEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(HospitalLoadRecorder); ok {
			if err := rec.RecordHospitalLoad(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordIncidentStatus forwards incident transitions.
func (m *MultiSink) RecordIncidentStatus(ev IncidentStatusEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(IncidentStatusRecorder); ok {
			if err := rec.RecordIncidentStatus(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
