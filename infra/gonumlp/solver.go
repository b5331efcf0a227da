// Package gonumlp implements solver.Solver on top of gonum's simplex.
//
// Continuous models are converted to standard form and handed to
// lp.Simplex directly. Models with integer or binary variables are solved
// by depth-first branch-and-bound over LP relaxations, branching on the
// most fractional variable and pruning against the incumbent.
package gonumlp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/flownet/core/logger"
	"github.com/kilianp07/flownet/core/lpmodel"
	"github.com/kilianp07/flownet/core/solver"
)

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	// Tolerance is the simplex reduced-cost tolerance.
	Tolerance float64 `json:"tolerance"`
	// IntegralityTolerance is how far from an integer a value may be and
	// still count as integral.
	IntegralityTolerance float64 `json:"integrality_tolerance"`
	// FeasibilityTolerance is the relative slack allowed when checking a
	// relaxation's answer against the model's constraints.
	FeasibilityTolerance float64 `json:"feasibility_tolerance"`
	// MaxNodes caps the number of relaxations in branch-and-bound.
	MaxNodes int `json:"max_nodes"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-9
	}
	if c.IntegralityTolerance <= 0 {
		c.IntegralityTolerance = 1e-6
	}
	if c.FeasibilityTolerance <= 0 {
		c.FeasibilityTolerance = 1e-6
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = 10000
	}
}

// Solver solves lpmodel.Models with gonum. It holds no per-solve state and
// is safe for concurrent use.
type Solver struct {
	cfg Config
	log logger.Logger
}

// New returns a Solver. A nil logger discards output.
func New(cfg Config, log logger.Logger) *Solver {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Solver{cfg: cfg, log: log}
}

// simplex points to the LP routine. Tests override it to inject failures.
var simplex = lp.Simplex

type relaxation struct {
	status solver.Code
	x      []float64
	// obj is sense·objective, so smaller is always better.
	obj    float64
	reason string
}

// Solve implements solver.Solver.
func (s *Solver) Solve(ctx context.Context, m *lpmodel.Model, opts solver.Options) (solver.RawResult, error) {
	if m == nil {
		return solver.RawResult{}, fmt.Errorf("%w: nil model", solver.ErrSolverUnavailable)
	}
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}
	lower := make([]float64, len(m.Variables))
	upper := make([]float64, len(m.Variables))
	for i, v := range m.Variables {
		lower[i], upper[i] = v.Lower, v.Upper
		if v.Domain != lpmodel.Continuous {
			lower[i], upper[i] = math.Ceil(v.Lower-s.cfg.IntegralityTolerance), math.Floor(v.Upper+s.cfg.IntegralityTolerance)
		}
	}

	var (
		res solver.RawResult
		err error
	)
	if m.HasIntegers() {
		res, err = s.branchAndBound(ctx, m, lower, upper)
	} else {
		if err = ctxErr(ctx); err == nil {
			r := s.relax(m, lower, upper)
			res = s.result(m, r, 1)
		}
	}
	if err != nil {
		s.log.Warnf("solve %s aborted: %v", m.Name, err)
		return solver.RawResult{}, err
	}
	s.log.Debugw("solve finished", map[string]any{
		"model":       m.Name,
		"status":      res.Status.String(),
		"nodes":       res.Nodes,
		"variables":   len(m.Variables),
		"constraints": len(m.Constraints),
	})
	return res, nil
}

func (s *Solver) result(m *lpmodel.Model, r relaxation, nodes int) solver.RawResult {
	res := solver.RawResult{Status: r.status, Nodes: nodes, Reason: r.reason}
	if r.status == solver.StatusOptimal {
		res.Values = r.x
		res.Objective = m.ObjectiveValue(r.x)
	}
	return res
}

// branchAndBound explores the relaxation tree depth first.
func (s *Solver) branchAndBound(ctx context.Context, m *lpmodel.Model, lower, upper []float64) (solver.RawResult, error) {
	type node struct{ lower, upper []float64 }
	stack := []node{{lower: lower, upper: upper}}
	var (
		incumbent []float64
		best      = math.Inf(1)
		nodes     int
		failures  int
		lastFail  string
	)
	for len(stack) > 0 {
		if err := ctxErr(ctx); err != nil {
			return solver.RawResult{}, err
		}
		if nodes >= s.cfg.MaxNodes {
			return solver.RawResult{
				Status: solver.StatusNotSolved,
				Nodes:  nodes,
				Reason: fmt.Sprintf("node limit %d reached", s.cfg.MaxNodes),
			}, nil
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		r := s.relax(m, nd.lower, nd.upper)
		nodes++

		switch r.status {
		case solver.StatusInfeasible:
			continue
		case solver.StatusUnbounded:
			if nodes == 1 {
				return solver.RawResult{Status: solver.StatusUnbounded, Nodes: nodes}, nil
			}
			continue
		case solver.StatusNotSolved:
			failures++
			lastFail = r.reason
			continue
		}
		if r.obj >= best-1e-9*math.Max(1, math.Abs(best)) {
			continue
		}
		j, frac := s.mostFractional(m, r.x, s.cfg.IntegralityTolerance)
		if j < 0 {
			// Rounding may break rows that tie continuous columns to the
			// integer ones, so the point is re-solved with them fixed.
			fl, fu := s.fixed(m, r.x, nd.lower, nd.upper)
			fr := s.relax(m, fl, fu)
			nodes++
			if fr.status == solver.StatusOptimal {
				if fr.obj < best-1e-9*math.Max(1, math.Abs(best)) {
					incumbent = s.snap(m, fr.x)
					best = fr.obj
				}
				continue
			}
			if fr.status == solver.StatusNotSolved {
				failures++
				lastFail = fr.reason
			}
			if j, frac = s.mostFractional(m, r.x, 0); j < 0 {
				continue
			}
		}
		down := node{lower: nd.lower, upper: clone(nd.upper)}
		down.upper[j] = math.Floor(r.x[j])
		up := node{lower: clone(nd.lower), upper: nd.upper}
		up.lower[j] = math.Ceil(r.x[j])
		// The child pushed last is explored first.
		if frac >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if incumbent == nil {
		if failures > 0 {
			return solver.RawResult{Status: solver.StatusNotSolved, Nodes: nodes, Reason: lastFail}, nil
		}
		return solver.RawResult{Status: solver.StatusInfeasible, Nodes: nodes}, nil
	}
	if failures > 0 {
		s.log.Warnf("solve %s: %d relaxations failed numerically (%s)", m.Name, failures, lastFail)
	}
	return solver.RawResult{
		Status:    solver.StatusOptimal,
		Values:    incumbent,
		Objective: m.ObjectiveValue(incumbent),
		Nodes:     nodes,
	}, nil
}

// relax solves the LP relaxation under the given bounds.
func (s *Solver) relax(m *lpmodel.Model, lower, upper []float64) (r relaxation) {
	sf, code := standardize(m, lower, upper, 1e-9)
	if code != solver.StatusOptimal {
		return relaxation{status: code}
	}
	var y []float64
	if len(sf.c) > 0 {
		defer func() {
			if p := recover(); p != nil {
				r = relaxation{status: solver.StatusNotSolved, reason: fmt.Sprintf("simplex panic: %v", p)}
			}
		}()
		var err error
		_, y, err = simplex(sf.c, sf.a, sf.b, s.cfg.Tolerance, nil)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return relaxation{status: solver.StatusInfeasible}
		case errors.Is(err, lp.ErrUnbounded):
			return relaxation{status: solver.StatusUnbounded}
		case err != nil:
			return relaxation{status: solver.StatusNotSolved, reason: err.Error()}
		}
	}
	x := sf.values(y)
	if name, ok := s.feasible(m, x, lower, upper); !ok {
		return relaxation{status: solver.StatusNotSolved, reason: "relaxation violates " + name}
	}
	return relaxation{status: solver.StatusOptimal, x: x, obj: sf.sense * m.ObjectiveValue(x)}
}

func (s *Solver) feasible(m *lpmodel.Model, x, lower, upper []float64) (string, bool) {
	tol := s.cfg.FeasibilityTolerance
	for i, v := range m.Variables {
		if x[i] < lower[i]-tol*math.Max(1, math.Abs(lower[i])) || x[i] > upper[i]+tol*math.Max(1, math.Abs(upper[i])) {
			return "bounds of " + v.Name, false
		}
	}
	for _, c := range m.Constraints {
		if !c.Satisfied(x, tol*math.Max(1, math.Abs(c.RHS))) {
			return c.Name, false
		}
	}
	return "", true
}

// mostFractional returns the integer variable farthest from an integer, or
// -1 when none is farther than tol. frac is the fractional part of that
// variable.
func (s *Solver) mostFractional(m *lpmodel.Model, x []float64, tol float64) (idx int, frac float64) {
	idx = -1
	bestDist := tol
	for i, v := range m.Variables {
		if v.Domain == lpmodel.Continuous {
			continue
		}
		f := x[i] - math.Floor(x[i])
		dist := math.Min(f, 1-f)
		if dist > bestDist {
			idx, frac, bestDist = i, f, dist
		}
	}
	return idx, frac
}

// snap rounds integral variables to their nearest integer.
func (s *Solver) snap(m *lpmodel.Model, x []float64) []float64 {
	out := clone(x)
	for i, v := range m.Variables {
		if v.Domain != lpmodel.Continuous {
			out[i] = math.Round(out[i])
		}
	}
	return out
}

// fixed returns bounds that pin every integer column to its rounded value
// in x, clamped to the node's bounds.
func (s *Solver) fixed(m *lpmodel.Model, x, lower, upper []float64) ([]float64, []float64) {
	fl, fu := clone(lower), clone(upper)
	for i, v := range m.Variables {
		if v.Domain == lpmodel.Continuous {
			continue
		}
		r := math.Min(math.Max(math.Round(x[i]), lower[i]), upper[i])
		fl[i], fu[i] = r, r
	}
	return fl, fu
}

func ctxErr(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return solver.ErrTimedOut
	default:
		return err
	}
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }
