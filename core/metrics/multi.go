package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the event to all sinks, returning the first error
// encountered. Later sinks still receive the event.
func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordSolve(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordSweep forwards sweep events to the sinks that support them.
func (m *MultiSink) RecordSweep(ev SweepEvent) error {
	var first error
	for _, s := range m.Sinks {
		if rec, ok := s.(SweepRecorder); ok {
			if err := rec.RecordSweep(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Close closes the sinks that hold resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
