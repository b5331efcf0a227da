// Package interpret turns a solver's raw answer into a problem.Solution.
package interpret

import (
	"math"

	"github.com/kilianp07/flownet/core/builder"
	"github.com/kilianp07/flownet/core/lpmodel"
	"github.com/kilianp07/flownet/core/problem"
	"github.com/kilianp07/flownet/core/solver"
)

// DefaultTolerance is used when Interpreter.Tolerance is not positive.
const DefaultTolerance = 1e-6

// Interpreter maps solver results back onto the description they came from.
// It keeps no state between calls.
type Interpreter struct {
	// Tolerance below which a flow magnitude is reported as zero.
	Tolerance float64
}

// Interpret builds the Solution for raw, a result of solving m, which was
// built from p. Values are only reported when the solver proved optimality;
// every other status yields empty maps and no objective.
func (in Interpreter) Interpret(p problem.Description, m *builder.Model, raw solver.RawResult) problem.Solution {
	sol := problem.Solution{
		Status:          status(raw.Status),
		Flows:           make(map[problem.ArcKey]float64),
		Activations:     make(map[problem.ArcKey]int),
		NodeActivations: make(map[string]int),
	}
	if sol.Status != problem.StatusOptimal || m == nil || len(raw.Values) != len(m.LP.Variables) {
		if sol.Status == problem.StatusOptimal {
			sol.Status = problem.StatusNotSolved
		}
		return sol
	}
	tol := in.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	var obj float64
	for _, a := range p.Arcs {
		k := a.Key()
		v := raw.Values[m.Flow[k]]
		if math.Abs(v) < tol {
			v = 0
		}
		sol.Flows[k] = v
		obj += a.Cost * v
		if !a.Activation {
			continue
		}
		on := binary(raw.Values[m.Active[k]])
		sol.Activations[k] = on
		obj += a.FixedCost * float64(on)
	}
	for _, n := range p.Nodes {
		if !n.Activated() {
			continue
		}
		on := binary(raw.Values[m.Open[n.ID]])
		sol.NodeActivations[n.ID] = on
		obj += *n.ActivationCost * float64(on)
	}
	sol.Objective = &obj
	return sol
}

func status(c solver.Code) problem.Status {
	switch c {
	case solver.StatusOptimal:
		return problem.StatusOptimal
	case solver.StatusInfeasible:
		return problem.StatusInfeasible
	case solver.StatusUnbounded:
		return problem.StatusUnbounded
	default:
		return problem.StatusNotSolved
	}
}

func binary(v float64) int {
	if math.Round(v) >= 1 {
		return 1
	}
	return 0
}

// ModelSolution is the answer to a bare lpmodel.Model, keyed by variable
// name.
type ModelSolution struct {
	Status    problem.Status     `json:"status"`
	Values    map[string]float64 `json:"values"`
	Objective *float64           `json:"objective,omitempty"`
}

// Model interprets raw for a model solved without a Description. Integer
// and binary variables are rounded; continuous values below the tolerance
// are reported as zero.
func (in Interpreter) Model(m *lpmodel.Model, raw solver.RawResult) ModelSolution {
	sol := ModelSolution{Status: status(raw.Status), Values: make(map[string]float64)}
	if sol.Status != problem.StatusOptimal || m == nil || len(raw.Values) != len(m.Variables) {
		if sol.Status == problem.StatusOptimal {
			sol.Status = problem.StatusNotSolved
		}
		return sol
	}
	tol := in.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	x := make([]float64, len(raw.Values))
	for i, v := range m.Variables {
		x[i] = raw.Values[i]
		switch {
		case v.Domain != lpmodel.Continuous:
			x[i] = math.Round(x[i])
		case math.Abs(x[i]) < tol:
			x[i] = 0
		}
		sol.Values[v.Name] = x[i]
	}
	obj := m.ObjectiveValue(x)
	sol.Objective = &obj
	return sol
}
