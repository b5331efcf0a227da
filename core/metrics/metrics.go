package metrics

import "time"

// SolveEvent describes one completed solve.
type SolveEvent struct {
	RunID       string
	Problem     string
	Status      string
	Duration    time.Duration
	Variables   int
	Integers    int
	Constraints int
	Nodes       int
	// Objective is nil unless the solve was optimal.
	Objective *float64
	Time      time.Time
}

// MetricsSink records solve events for observability purposes.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
}

// SweepEvent summarises one parameter sweep.
type SweepEvent struct {
	Points   int
	Failed   int
	Workers  int
	Duration time.Duration
	Time     time.Time
}

// SweepRecorder is implemented by sinks able to record sweeps.
type SweepRecorder interface {
	RecordSweep(ev SweepEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error { return nil }
func (NopSink) RecordSweep(SweepEvent) error { return nil }
