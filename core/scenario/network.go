package scenario

import "github.com/kilianp07/flownet/core/problem"

type amount struct {
	id string
	v  float64
}

// bipartite connects every supply node to every demand node. cost is
// indexed [supply][demand] in slice order.
func bipartite(name string, supply, demand []amount, cost [][]float64) problem.Description {
	p := problem.Description{Name: name, Sense: problem.Minimize}
	for _, s := range supply {
		p.Nodes = append(p.Nodes, problem.Node{ID: s.id, Role: problem.RoleSupply, Amount: s.v})
	}
	for _, d := range demand {
		p.Nodes = append(p.Nodes, problem.Node{ID: d.id, Role: problem.RoleDemand, Amount: d.v})
	}
	for i, s := range supply {
		for j, d := range demand {
			p.Arcs = append(p.Arcs, problem.Arc{From: s.id, To: d.id, Cost: cost[i][j]})
		}
	}
	return p
}

// Transportation ships 150 units from three warehouses to four stores.
func Transportation() problem.Description {
	return bipartite("transportation",
		[]amount{{"W1", 70}, {"W2", 50}, {"W3", 30}},
		[]amount{{"S1", 40}, {"S2", 30}, {"S3", 20}, {"S4", 60}},
		[][]float64{
			{2, 4, 5, 2},
			{3, 1, 7, 6},
			{4, 3, 4, 5},
		})
}

// FacilityLocation chooses which of five facilities to build. A facility
// ships nothing unless it is opened at its construction cost.
func FacilityLocation() problem.Description {
	p := bipartite("facility-location",
		[]amount{{"A", 80}, {"B", 50}, {"C", 60}, {"D", 70}, {"E", 40}},
		[]amount{{"1", 30}, {"2", 40}, {"3", 20}, {"4", 30}},
		[][]float64{
			{20, 40, 60, 30},
			{35, 20, 25, 45},
			{50, 60, 20, 30},
			{25, 35, 45, 20},
			{30, 50, 40, 25},
		})
	build := map[string]float64{"A": 120, "B": 100, "C": 110, "D": 130, "E": 90}
	for i := range p.Nodes {
		if c, ok := build[p.Nodes[i].ID]; ok {
			p.Nodes[i].ActivationCost = problem.Float(c)
		}
	}
	return p
}

// EnergyDispatch meets a demand of 130 from three generators.
func EnergyDispatch() problem.Description {
	return bipartite("energy-dispatch",
		[]amount{{"solar", 50}, {"wind", 80}, {"diesel", 100}},
		[]amount{{"load", 130}},
		[][]float64{{0}, {1}, {5}})
}

// VillageSupply supplies four villages from three energy centers. Every
// link is switchable and carries at least one unit when switched on. C3
// may serve a single village and V4 must be served by two centers or more.
func VillageSupply() problem.Description {
	p := bipartite("village-supply",
		[]amount{{"C1", 80}, {"C2", 100}, {"C3", 60}},
		[]amount{{"V1", 50}, {"V2", 40}, {"V3", 60}, {"V4", 60}},
		[][]float64{
			{4, 6, 9, 7},
			{5, 4, 7, 6},
			{8, 7, 6, 5},
		})
	var c3, v4 []problem.Term
	for i := range p.Arcs {
		a := &p.Arcs[i]
		a.Activation = true
		a.MinFlow = 1
		if a.From == "C3" {
			c3 = append(c3, problem.Term{Var: problem.Active(a.From, a.To), Coef: 1})
		}
		if a.To == "V4" {
			v4 = append(v4, problem.Term{Var: problem.Active(a.From, a.To), Coef: 1})
		}
	}
	p.Constraints = []problem.LinearConstraint{
		{Name: "c3_single_village", Terms: c3, Relation: problem.RelLE, RHS: 1},
		{Name: "v4_multiple_centers", Terms: v4, Relation: problem.RelGE, RHS: 2},
	}
	return p
}
