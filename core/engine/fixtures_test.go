package engine

import (
	"fmt"

	"github.com/kilianp07/flownet/core/problem"
)

var transportCost = map[string]map[string]float64{
	"W1": {"S1": 2, "S2": 4, "S3": 5, "S4": 2},
	"W2": {"S1": 3, "S2": 1, "S3": 7, "S4": 6},
	"W3": {"S1": 4, "S2": 3, "S3": 4, "S4": 5},
}

// transportation builds the three-warehouse, four-store network with the
// given capacities and exact demands.
func transportation(supply, demand []float64) problem.Description {
	p := problem.Description{Name: "transportation", Sense: problem.Minimize}
	for i, s := range supply {
		p.Nodes = append(p.Nodes, problem.Node{ID: fmt.Sprintf("W%d", i+1), Role: problem.RoleSupply, Amount: s})
	}
	for j, d := range demand {
		p.Nodes = append(p.Nodes, problem.Node{ID: fmt.Sprintf("S%d", j+1), Role: problem.RoleDemand, Amount: d})
	}
	for i := range supply {
		w := fmt.Sprintf("W%d", i+1)
		for j := range demand {
			s := fmt.Sprintf("S%d", j+1)
			p.Arcs = append(p.Arcs, problem.Arc{From: w, To: s, Cost: transportCost[w][s]})
		}
	}
	return p
}

// gatedArc is a single activation-gated arc feeding an optional sink.
func gatedArc(capacity, minFlow, cost float64) problem.Description {
	return problem.Description{
		Name:  "gated",
		Sense: problem.Minimize,
		Nodes: []problem.Node{
			{ID: "S", Role: problem.RoleSupply, Amount: capacity},
			{ID: "D", Role: problem.RoleDemand, Amount: capacity, Relation: problem.RelLE},
		},
		Arcs: []problem.Arc{
			{From: "S", To: "D", Cost: cost, Capacity: problem.Float(capacity), Activation: true, MinFlow: minFlow},
		},
	}
}

// circulation has two uncapacitated hubs feeding each other; maximising the
// flow between them has no bound.
func circulation() problem.Description {
	return problem.Description{
		Name:  "circulation",
		Sense: problem.Maximize,
		Nodes: []problem.Node{
			{ID: "H1", Role: problem.RoleTransshipment},
			{ID: "H2", Role: problem.RoleTransshipment},
		},
		Arcs: []problem.Arc{
			{From: "H1", To: "H2", Cost: 1},
			{From: "H2", To: "H1", Cost: 1},
		},
	}
}

// recomputed is Σ cost·flow + fixed·activation + opening costs.
func recomputed(p problem.Description, sol problem.Solution) float64 {
	var sum float64
	for _, a := range p.Arcs {
		sum += a.Cost * sol.Flows[a.Key()]
		if a.Activation {
			sum += a.FixedCost * float64(sol.Activations[a.Key()])
		}
	}
	for _, n := range p.Nodes {
		if n.Activated() {
			sum += *n.ActivationCost * float64(sol.NodeActivations[n.ID])
		}
	}
	return sum
}
