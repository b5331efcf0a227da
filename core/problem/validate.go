package problem

import (
	"fmt"
	"math"
)

// Validate checks the description for structural errors. It returns the
// first problem found; nil means the description can be built.
func (d Description) Validate() error {
	if !d.Sense.Valid() {
		return invalid("sense", "unknown objective sense %q", d.Sense)
	}
	nodes := make(map[string]Node, len(d.Nodes))
	for i, n := range d.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		if err := validateNode(field, n); err != nil {
			return err
		}
		if _, dup := nodes[n.ID]; dup {
			return invalid(field, "duplicate node id %q", n.ID)
		}
		nodes[n.ID] = n
	}

	arcs := make(map[ArcKey]Arc, len(d.Arcs))
	for i, a := range d.Arcs {
		field := fmt.Sprintf("arcs[%d]", i)
		if err := d.validateArc(field, a, nodes); err != nil {
			return err
		}
		if _, dup := arcs[a.Key()]; dup {
			return invalid(field, "duplicate arc %s", a.Key())
		}
		arcs[a.Key()] = a
	}

	for i, n := range d.Nodes {
		if n.Role != RoleTransshipment || !n.Activated() || n.Amount > 0 {
			continue
		}
		if math.IsInf(d.ThroughputBound(n.ID), 1) {
			return invalid(fmt.Sprintf("nodes[%d]", i), "activated transshipment node %q has no finite throughput bound; set an amount or cap its inbound arcs", n.ID)
		}
	}

	for i, c := range d.Constraints {
		if err := validateConstraint(i, c, nodes, arcs); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(field string, n Node) error {
	if n.ID == "" {
		return invalid(field, "empty node id")
	}
	if !n.Role.Valid() {
		return invalid(field, "node %q has unknown role %q", n.ID, n.Role)
	}
	if n.Amount < 0 || !finite(n.Amount) {
		return invalid(field, "node %q amount must be a non-negative number, got %v", n.ID, n.Amount)
	}
	if n.Relation != "" {
		if n.Role != RoleDemand {
			return invalid(field, "relation only applies to demand nodes, %q is %s", n.ID, n.Role)
		}
		if !n.Relation.Valid() {
			return invalid(field, "node %q has unknown relation %q", n.ID, n.Relation)
		}
	}
	if n.ActivationCost != nil {
		if n.Role == RoleDemand {
			return invalid(field, "demand node %q cannot carry an activation cost", n.ID)
		}
		if *n.ActivationCost < 0 || !finite(*n.ActivationCost) {
			return invalid(field, "node %q activation cost must be non-negative, got %v", n.ID, *n.ActivationCost)
		}
	}
	return nil
}

func (d Description) validateArc(field string, a Arc, nodes map[string]Node) error {
	src, ok := nodes[a.From]
	if !ok {
		return invalid(field, "arc %s references unknown node %q", a.Key(), a.From)
	}
	dst, ok := nodes[a.To]
	if !ok {
		return invalid(field, "arc %s references unknown node %q", a.Key(), a.To)
	}
	if a.From == a.To {
		return invalid(field, "arc %s is a self-loop", a.Key())
	}
	if src.Role == RoleDemand {
		return invalid(field, "arc %s leaves demand node %q", a.Key(), a.From)
	}
	if dst.Role == RoleSupply {
		return invalid(field, "arc %s enters supply node %q", a.Key(), a.To)
	}
	if !finite(a.Cost) {
		return invalid(field, "arc %s cost must be finite", a.Key())
	}
	if a.Capacity != nil && (*a.Capacity < 0 || !finite(*a.Capacity)) {
		return invalid(field, "arc %s capacity must be a non-negative number, got %v", a.Key(), *a.Capacity)
	}
	if !a.Activation {
		if a.MinFlow != 0 || a.FixedCost != 0 {
			return invalid(field, "arc %s sets min_flow or fixed_cost without activation", a.Key())
		}
		return nil
	}
	if a.MinFlow < 0 || !finite(a.MinFlow) {
		return invalid(field, "arc %s min_flow must be non-negative, got %v", a.Key(), a.MinFlow)
	}
	if !finite(a.FixedCost) {
		return invalid(field, "arc %s fixed_cost must be finite", a.Key())
	}
	bound := linkBound(a, src, dst)
	if math.IsInf(bound, 1) {
		return invalid(field, "activation arc %s has no finite flow bound; set a capacity", a.Key())
	}
	if a.MinFlow > bound {
		return invalid(field, "arc %s min_flow %v exceeds its flow bound %v", a.Key(), a.MinFlow, bound)
	}
	return nil
}

func validateConstraint(i int, c LinearConstraint, nodes map[string]Node, arcs map[ArcKey]Arc) error {
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("constraints[%d]", i)
	}
	field := fmt.Sprintf("constraints[%d]", i)
	if !c.Relation.Valid() {
		return invalid(field, "constraint %q has unknown relation %q", name, c.Relation)
	}
	if !finite(c.RHS) {
		return invalid(field, "constraint %q rhs must be finite", name)
	}
	if len(c.Terms) == 0 {
		return invalid(field, "constraint %q has no terms", name)
	}
	for _, t := range c.Terms {
		if !finite(t.Coef) {
			return invalid(field, "constraint %q coefficient of %s must be finite", name, t.Var)
		}
		if !resolves(t.Var, nodes, arcs) {
			return &UnknownVariableError{Constraint: name, Ref: t.Var}
		}
	}
	return nil
}

func resolves(ref VarRef, nodes map[string]Node, arcs map[ArcKey]Arc) bool {
	switch ref.Kind {
	case VarFlow:
		_, ok := arcs[ref.Arc]
		return ok
	case VarActive:
		a, ok := arcs[ref.Arc]
		return ok && a.Activation
	case VarOpen:
		n, ok := nodes[ref.Node]
		return ok && n.Activated()
	}
	return false
}

// LinkBound returns the largest flow arc a can carry: the minimum of its own
// capacity, the capacity of its source and the requirement bound of its
// destination. It is +Inf when none of these is finite. Unknown endpoints
// are treated as unbounded.
func (d Description) LinkBound(a Arc) float64 {
	src, _ := d.Node(a.From)
	dst, _ := d.Node(a.To)
	return linkBound(a, src, dst)
}

// ThroughputBound returns the most flow node id can take in: its amount when
// set, otherwise the sum of the link bounds of its inbound arcs. An activated
// transshipment node without an amount is gated by this value.
func (d Description) ThroughputBound(id string) float64 {
	if n, ok := d.Node(id); ok && n.Amount > 0 {
		return n.Amount
	}
	var sum float64
	for _, a := range d.Arcs {
		if a.To == id {
			sum += d.LinkBound(a)
		}
	}
	return sum
}

func linkBound(a Arc, src, dst Node) float64 {
	bound := math.Inf(1)
	if a.Capacity != nil {
		bound = *a.Capacity
	}
	switch src.Role {
	case RoleSupply:
		bound = math.Min(bound, src.Amount)
	case RoleTransshipment:
		if src.Amount > 0 {
			bound = math.Min(bound, src.Amount)
		}
	}
	switch dst.Role {
	case RoleDemand:
		if dst.DemandRelation() != RelGE {
			bound = math.Min(bound, dst.Amount)
		}
	case RoleTransshipment:
		if dst.Amount > 0 {
			bound = math.Min(bound, dst.Amount)
		}
	}
	return bound
}

func finite(v float64) bool { return !math.IsInf(v, 0) && !math.IsNaN(v) }
