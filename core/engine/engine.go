// Package engine ties the pipeline together: build a model from a
// description, hand it to a solver, interpret the answer, and report the
// run to metrics and the run log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/flownet/core/builder"
	"github.com/kilianp07/flownet/core/interpret"
	"github.com/kilianp07/flownet/core/logger"
	"github.com/kilianp07/flownet/core/lpmodel"
	"github.com/kilianp07/flownet/core/metrics"
	"github.com/kilianp07/flownet/core/monitoring"
	"github.com/kilianp07/flownet/core/mqtt"
	"github.com/kilianp07/flownet/core/problem"
	"github.com/kilianp07/flownet/core/runlog"
	"github.com/kilianp07/flownet/core/solver"
)

// Config tunes every solve run by an Engine.
type Config struct {
	// TimeLimit bounds each solve. Zero means no limit.
	TimeLimit time.Duration `json:"time_limit"`
	// Tolerance is handed to the result interpreter.
	Tolerance float64 `json:"tolerance"`
}

// Run is the outcome of one solve together with its bookkeeping.
type Run struct {
	ID       string
	Solution problem.Solution
	Duration time.Duration
	Nodes    int
}

// Engine solves descriptions. It keeps no per-solve state and may be shared
// by goroutines.
type Engine struct {
	solver solver.Solver
	interp interpret.Interpreter
	opts   solver.Options
	sink   metrics.MetricsSink
	log    logger.Logger

	mu   sync.RWMutex
	runs runlog.Store
	pub  mqtt.Publisher
}

// New returns an Engine. A nil sink or logger disables that concern.
func New(cfg Config, s solver.Solver, sink metrics.MetricsSink, log logger.Logger) *Engine {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{
		solver: s,
		interp: interpret.Interpreter{Tolerance: cfg.Tolerance},
		opts:   solver.Options{TimeLimit: cfg.TimeLimit},
		sink:   sink,
		log:    log,
		runs:   runlog.NopStore{},
		pub:    mqtt.NopPublisher{},
	}
}

// SetRunLog sets the store every run is appended to.
func (e *Engine) SetRunLog(store runlog.Store) {
	if store == nil {
		store = runlog.NopStore{}
	}
	e.mu.Lock()
	e.runs = store
	e.mu.Unlock()
}

// SetPublisher sets where solved network runs are published.
func (e *Engine) SetPublisher(p mqtt.Publisher) {
	if p == nil {
		p = mqtt.NopPublisher{}
	}
	e.mu.Lock()
	e.pub = p
	e.mu.Unlock()
}

// Solve builds, solves and interprets p. Infeasible and unbounded problems
// are reported through the Solution status. Errors are validation failures
// (problem.ErrValidation), solver.ErrTimedOut, solver.ErrSolverUnavailable
// and context cancellation.
func (e *Engine) Solve(ctx context.Context, p problem.Description) (problem.Solution, error) {
	run, err := e.Run(ctx, p)
	return run.Solution, err
}

// Run is Solve returning the run's id and statistics as well.
func (e *Engine) Run(ctx context.Context, p problem.Description) (Run, error) {
	run := Run{ID: uuid.NewString()}
	start := time.Now()
	rec := runlog.Record{RunID: run.ID, Timestamp: start, Problem: p.Name, Sense: p.Sense}

	m, err := builder.Build(p)
	if err != nil {
		e.log.Warnf("run %s: %s rejected: %v", run.ID, p.Name, err)
		e.finish(ctx, rec, nil, err)
		return run, err
	}
	raw, err := e.solve(ctx, m.LP)
	run.Duration = time.Since(start)
	if err != nil {
		e.log.Errorf("run %s: solving %s failed: %v", run.ID, p.Name, err)
		rec.Duration = run.Duration
		e.finish(ctx, rec, m.LP, err)
		return run, err
	}

	run.Solution = e.interp.Interpret(p, m, raw)
	run.Nodes = raw.Nodes
	rec.Status = run.Solution.Status
	rec.Objective = run.Solution.Objective
	rec.Duration = run.Duration
	rec.Nodes = raw.Nodes
	rec.Solution = &run.Solution
	if raw.Reason != "" {
		rec.Error = raw.Reason
	}
	e.finish(ctx, rec, m.LP, nil)
	e.publish(ctx, run, p.Name, start)
	e.log.Infof("run %s: %s %s in %s", run.ID, p.Name, run.Solution.Status, run.Duration)
	return run, nil
}

// SolveModel solves a bare model, for problems that are not flow networks.
func (e *Engine) SolveModel(ctx context.Context, m *lpmodel.Model) (interpret.ModelSolution, error) {
	if m == nil {
		return interpret.ModelSolution{}, fmt.Errorf("%w: nil model", problem.ErrValidation)
	}
	id := uuid.NewString()
	start := time.Now()
	rec := runlog.Record{RunID: id, Timestamp: start, Problem: m.Name, Sense: sense(m.Objective.Sense)}
	raw, err := e.solve(ctx, m)
	rec.Duration = time.Since(start)
	if err != nil {
		e.log.Errorf("run %s: solving %s failed: %v", id, m.Name, err)
		e.finish(ctx, rec, m, err)
		return interpret.ModelSolution{}, err
	}
	sol := e.interp.Model(m, raw)
	rec.Status = sol.Status
	rec.Objective = sol.Objective
	rec.Nodes = raw.Nodes
	rec.Error = raw.Reason
	e.finish(ctx, rec, m, nil)
	e.log.Infof("run %s: %s %s in %s", id, m.Name, sol.Status, rec.Duration)
	return sol, nil
}

func (e *Engine) solve(ctx context.Context, m *lpmodel.Model) (solver.RawResult, error) {
	if e.solver == nil {
		return solver.RawResult{}, fmt.Errorf("%w: no solver configured", solver.ErrSolverUnavailable)
	}
	e.log.Debugw("solving model", map[string]any{
		"model":       m.Name,
		"variables":   len(m.Variables),
		"constraints": len(m.Constraints),
		"time_limit":  e.opts.TimeLimit.String(),
	})
	return e.solver.Solve(ctx, m, e.opts)
}

// finish reports a run to the metrics sink and the run log. Failures there
// are logged and never change the outcome of the solve.
func (e *Engine) finish(ctx context.Context, rec runlog.Record, m *lpmodel.Model, solveErr error) {
	status := string(rec.Status)
	if solveErr != nil {
		rec.Error = solveErr.Error()
		status = errorStatus(solveErr)
		if status == "error" && !errors.Is(solveErr, context.Canceled) {
			monitoring.CaptureException(solveErr, map[string]string{"problem": rec.Problem, "run_id": rec.RunID})
		}
	}
	ev := metrics.SolveEvent{
		RunID:     rec.RunID,
		Problem:   rec.Problem,
		Status:    status,
		Duration:  rec.Duration,
		Nodes:     rec.Nodes,
		Objective: rec.Objective,
		Time:      rec.Timestamp,
	}
	if m != nil {
		rec.Variables, rec.Constraints = len(m.Variables), len(m.Constraints)
		ev.Variables, ev.Constraints = rec.Variables, rec.Constraints
		for _, v := range m.Variables {
			if v.Domain != lpmodel.Continuous {
				ev.Integers++
			}
		}
	}
	if err := e.sink.RecordSolve(ev); err != nil {
		e.log.Warnf("run %s: record metrics: %v", rec.RunID, err)
	}

	e.mu.RLock()
	runs := e.runs
	e.mu.RUnlock()
	// The run log is written even when the solve's context was canceled.
	if err := runs.Append(context.WithoutCancel(ctx), rec); err != nil {
		e.log.Warnf("run %s: append run log: %v", rec.RunID, err)
	}
}

func (e *Engine) publish(ctx context.Context, run Run, name string, start time.Time) {
	e.mu.RLock()
	pub := e.pub
	e.mu.RUnlock()
	msg := mqtt.Message{RunID: run.ID, Problem: name, Timestamp: start, Duration: run.Duration, Solution: run.Solution}
	if err := pub.Publish(ctx, msg); err != nil {
		e.log.Warnf("run %s: publish: %v", run.ID, err)
	}
}

func errorStatus(err error) string {
	switch {
	case errors.Is(err, problem.ErrValidation):
		return "invalid"
	case errors.Is(err, solver.ErrTimedOut):
		return "timed_out"
	case errors.Is(err, solver.ErrSolverUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func sense(s lpmodel.Sense) problem.Sense {
	if s == lpmodel.Maximize {
		return problem.Maximize
	}
	return problem.Minimize
}
