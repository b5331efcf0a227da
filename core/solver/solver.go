// Package solver defines the boundary between the model builder and an
// external LP/MIP engine.
//
// A Solver receives a fully built lpmodel.Model and returns a RawResult.
// Infeasible and unbounded models are reported through RawResult.Status;
// only conditions that prevent an answer (time limit, missing engine) are
// returned as errors. Errors are never retried here: retrying an infeasible
// model is never correct and retrying a timed-out solve is the caller's
// decision.
package solver

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/flownet/core/lpmodel"
)

// Code is the raw status reported by an engine.
type Code int

const (
	// StatusNotSolved means the engine stopped without a proven answer.
	StatusNotSolved Code = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
)

func (c Code) String() string {
	switch c {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "not_solved"
	}
}

var (
	// ErrTimedOut is returned when the time limit or context deadline expires
	// before the engine finishes.
	ErrTimedOut = errors.New("solver: timed out")
	// ErrSolverUnavailable is returned when no engine can serve the request.
	ErrSolverUnavailable = errors.New("solver: unavailable")
)

// Options tunes a single solve.
type Options struct {
	// TimeLimit bounds the wall-clock duration of the solve. Zero means no
	// limit beyond the context deadline.
	TimeLimit time.Duration
}

// RawResult is the engine's answer in model terms.
type RawResult struct {
	Status Code
	// Values holds one value per model variable, in model order. Only set
	// when Status is StatusOptimal.
	Values []float64
	// Objective is the objective value in the model's own sense.
	Objective float64
	// Nodes counts the LP relaxations solved.
	Nodes int
	// Reason explains a StatusNotSolved result.
	Reason string
}

// Solver solves a model. Implementations must not keep references to the
// model after Solve returns and must be safe for concurrent use.
type Solver interface {
	Solve(ctx context.Context, m *lpmodel.Model, opts Options) (RawResult, error)
}

// Func adapts a function to the Solver interface.
type Func func(ctx context.Context, m *lpmodel.Model, opts Options) (RawResult, error)

// Solve calls f.
func (f Func) Solve(ctx context.Context, m *lpmodel.Model, opts Options) (RawResult, error) {
	return f(ctx, m, opts)
}
