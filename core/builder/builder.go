// Package builder turns a problem.Description into an lpmodel.Model.
//
// Variables are created in arc order (flow, then active when the arc is
// activation-gated) followed by open variables in node order. Constraints
// follow in a fixed order: supply, demand, transshipment balance and
// throughput, linkage upper, linkage lower, then caller constraints. An
// activated transshipment node without an amount is gated by the sum of its
// inbound link bounds. The order only depends on the order of the input
// slices, so the same description always yields the same model.
package builder

import (
	"fmt"
	"math"

	"github.com/kilianp07/flownet/core/lpmodel"
	"github.com/kilianp07/flownet/core/problem"
)

// Model is the lpmodel built for one description, with the mapping from
// domain variables back to model columns.
type Model struct {
	LP *lpmodel.Model
	// Arcs are the description's arcs in build order.
	Arcs []problem.Arc
	// Flow maps each arc to its flow column.
	Flow map[problem.ArcKey]lpmodel.VarID
	// Active maps activation-gated arcs to their binary column.
	Active map[problem.ArcKey]lpmodel.VarID
	// Open maps activated nodes to their binary column.
	Open map[string]lpmodel.VarID
}

// Var resolves a domain variable reference to its model column.
func (m *Model) Var(ref problem.VarRef) (lpmodel.VarID, bool) {
	var (
		id lpmodel.VarID
		ok bool
	)
	switch ref.Kind {
	case problem.VarFlow:
		id, ok = m.Flow[ref.Arc]
	case problem.VarActive:
		id, ok = m.Active[ref.Arc]
	case problem.VarOpen:
		id, ok = m.Open[ref.Node]
	}
	return id, ok
}

// Build validates p and assembles its model.
func Build(p problem.Description) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b := &build{
		p: p,
		m: &Model{
			LP:     lpmodel.New(p.Name),
			Arcs:   append([]problem.Arc(nil), p.Arcs...),
			Flow:   make(map[problem.ArcKey]lpmodel.VarID, len(p.Arcs)),
			Active: make(map[problem.ArcKey]lpmodel.VarID),
			Open:   make(map[string]lpmodel.VarID),
		},
	}
	steps := []func() error{
		b.variables,
		b.objective,
		b.supply,
		b.demand,
		b.transshipment,
		b.linkage,
		b.custom,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("build %s: %w", p.Name, err)
		}
	}
	return b.m, nil
}

type build struct {
	p problem.Description
	m *Model
}

func (b *build) variables() error {
	lp := b.m.LP
	for _, a := range b.p.Arcs {
		upper := math.Inf(1)
		if a.Capacity != nil {
			upper = *a.Capacity
		}
		id, err := lp.AddVariable(problem.Flow(a.From, a.To).String(), 0, upper, lpmodel.Continuous)
		if err != nil {
			return err
		}
		b.m.Flow[a.Key()] = id
		if !a.Activation {
			continue
		}
		id, err = lp.AddVariable(problem.Active(a.From, a.To).String(), 0, 1, lpmodel.Binary)
		if err != nil {
			return err
		}
		b.m.Active[a.Key()] = id
	}
	for _, n := range b.p.Nodes {
		if !n.Activated() {
			continue
		}
		id, err := lp.AddVariable(problem.Open(n.ID).String(), 0, 1, lpmodel.Binary)
		if err != nil {
			return err
		}
		b.m.Open[n.ID] = id
	}
	return nil
}

func (b *build) objective() error {
	var terms []lpmodel.Term
	for _, a := range b.p.Arcs {
		if a.Cost != 0 {
			terms = append(terms, lpmodel.Term{Var: b.m.Flow[a.Key()], Coef: a.Cost})
		}
		if a.Activation && a.FixedCost != 0 {
			terms = append(terms, lpmodel.Term{Var: b.m.Active[a.Key()], Coef: a.FixedCost})
		}
	}
	for _, n := range b.p.Nodes {
		if n.Activated() && *n.ActivationCost != 0 {
			terms = append(terms, lpmodel.Term{Var: b.m.Open[n.ID], Coef: *n.ActivationCost})
		}
	}
	sense := lpmodel.Minimize
	if b.p.Sense == problem.Maximize {
		sense = lpmodel.Maximize
	}
	return b.m.LP.SetObjective(sense, terms, 0)
}

// gated returns the terms of Σ flow ≤ limit, moving limit to the left-hand
// side as -limit·open[n] when the node is activated.
func (b *build) gated(n problem.Node, flows []lpmodel.Term, limit float64) ([]lpmodel.Term, float64) {
	if !n.Activated() {
		return flows, limit
	}
	return append(flows, lpmodel.Term{Var: b.m.Open[n.ID], Coef: -limit}), 0
}

func (b *build) supply() error {
	for _, n := range b.p.Nodes {
		if n.Role != problem.RoleSupply {
			continue
		}
		terms, rhs := b.gated(n, b.flows(func(k problem.ArcKey) bool { return k.From == n.ID }, 1), n.Amount)
		if err := b.m.LP.AddConstraint(fmt.Sprintf("supply[%s]", n.ID), terms, lpmodel.LE, rhs); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) demand() error {
	for _, n := range b.p.Nodes {
		if n.Role != problem.RoleDemand {
			continue
		}
		terms := b.flows(func(k problem.ArcKey) bool { return k.To == n.ID }, 1)
		if err := b.m.LP.AddConstraint(fmt.Sprintf("demand[%s]", n.ID), terms, op(n.DemandRelation()), n.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) transshipment() error {
	for _, n := range b.p.Nodes {
		if n.Role != problem.RoleTransshipment {
			continue
		}
		in := b.flows(func(k problem.ArcKey) bool { return k.To == n.ID }, 1)
		out := b.flows(func(k problem.ArcKey) bool { return k.From == n.ID }, -1)
		balance := append(append([]lpmodel.Term(nil), in...), out...)
		if err := b.m.LP.AddConstraint(fmt.Sprintf("balance[%s]", n.ID), balance, lpmodel.EQ, 0); err != nil {
			return err
		}
		if n.Amount <= 0 && !n.Activated() {
			continue
		}
		terms, rhs := b.gated(n, in, b.p.ThroughputBound(n.ID))
		if err := b.m.LP.AddConstraint(fmt.Sprintf("throughput[%s]", n.ID), terms, lpmodel.LE, rhs); err != nil {
			return err
		}
	}
	return nil
}

// linkage ties each activation-gated flow to its binary:
// flow ≤ U·active always, and flow ≥ MinFlow·active when MinFlow > 0.
func (b *build) linkage() error {
	for _, a := range b.p.Arcs {
		if !a.Activation {
			continue
		}
		flow, active := b.m.Flow[a.Key()], b.m.Active[a.Key()]
		upper := b.p.LinkBound(a)
		terms := []lpmodel.Term{{Var: flow, Coef: 1}, {Var: active, Coef: -upper}}
		if err := b.m.LP.AddConstraint(fmt.Sprintf("link_upper[%s]", a.Key()), terms, lpmodel.LE, 0); err != nil {
			return err
		}
	}
	for _, a := range b.p.Arcs {
		if !a.Activation || a.MinFlow <= 0 {
			continue
		}
		flow, active := b.m.Flow[a.Key()], b.m.Active[a.Key()]
		terms := []lpmodel.Term{{Var: flow, Coef: 1}, {Var: active, Coef: -a.MinFlow}}
		if err := b.m.LP.AddConstraint(fmt.Sprintf("link_lower[%s]", a.Key()), terms, lpmodel.GE, 0); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) custom() error {
	for i, c := range b.p.Constraints {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("constraints[%d]", i)
		}
		terms := make([]lpmodel.Term, 0, len(c.Terms))
		for _, t := range c.Terms {
			id, ok := b.m.Var(t.Var)
			if !ok {
				return &problem.UnknownVariableError{Constraint: name, Ref: t.Var}
			}
			terms = append(terms, lpmodel.Term{Var: id, Coef: t.Coef})
		}
		if err := b.m.LP.AddConstraint(name, terms, op(c.Relation), c.RHS); err != nil {
			return err
		}
	}
	return nil
}

// flows collects the flow columns of arcs selected by keep, in arc order.
func (b *build) flows(keep func(problem.ArcKey) bool, coef float64) []lpmodel.Term {
	var terms []lpmodel.Term
	for _, a := range b.p.Arcs {
		if keep(a.Key()) {
			terms = append(terms, lpmodel.Term{Var: b.m.Flow[a.Key()], Coef: coef})
		}
	}
	return terms
}

func op(r problem.Relation) lpmodel.Op {
	switch r {
	case problem.RelLE:
		return lpmodel.LE
	case problem.RelGE:
		return lpmodel.GE
	default:
		return lpmodel.EQ
	}
}
