// Package problemfile reads and writes problem descriptions as YAML, JSON
// or TOML documents, with arcs optionally kept in a separate CSV table.
package problemfile

import (
	"fmt"

	"github.com/kilianp07/flownet/core/problem"
)

// File is the on-disk form of a problem.Description. Relations and
// variable references are kept as strings so files can use any spelling
// accepted by problem.ParseRelation.
type File struct {
	Name  string    `yaml:"name" json:"name" toml:"name"`
	Sense string    `yaml:"sense,omitempty" json:"sense,omitempty" toml:"sense,omitempty"`
	Nodes []NodeDef `yaml:"nodes" json:"nodes" toml:"nodes"`
	Arcs  []ArcDef  `yaml:"arcs,omitempty" json:"arcs,omitempty" toml:"arcs,omitempty"`
	// ArcTable is a CSV file, relative to the document, whose rows are
	// appended to Arcs.
	ArcTable    string          `yaml:"arc_table,omitempty" json:"arc_table,omitempty" toml:"arc_table,omitempty"`
	Constraints []ConstraintDef `yaml:"constraints,omitempty" json:"constraints,omitempty" toml:"constraints,omitempty"`
}

type NodeDef struct {
	ID             string   `yaml:"id" json:"id" toml:"id"`
	Role           string   `yaml:"role" json:"role" toml:"role"`
	Amount         float64  `yaml:"amount" json:"amount" toml:"amount"`
	Relation       string   `yaml:"relation,omitempty" json:"relation,omitempty" toml:"relation,omitempty"`
	ActivationCost *float64 `yaml:"activation_cost,omitempty" json:"activation_cost,omitempty" toml:"activation_cost,omitempty"`
}

type ArcDef struct {
	From       string   `yaml:"from" json:"from" toml:"from"`
	To         string   `yaml:"to" json:"to" toml:"to"`
	Cost       float64  `yaml:"cost" json:"cost" toml:"cost"`
	Capacity   *float64 `yaml:"capacity,omitempty" json:"capacity,omitempty" toml:"capacity,omitempty"`
	Activation bool     `yaml:"activation,omitempty" json:"activation,omitempty" toml:"activation,omitempty"`
	MinFlow    float64  `yaml:"min_flow,omitempty" json:"min_flow,omitempty" toml:"min_flow,omitempty"`
	FixedCost  float64  `yaml:"fixed_cost,omitempty" json:"fixed_cost,omitempty" toml:"fixed_cost,omitempty"`
}

type ConstraintDef struct {
	Name     string    `yaml:"name,omitempty" json:"name,omitempty" toml:"name,omitempty"`
	Terms    []TermDef `yaml:"terms" json:"terms" toml:"terms"`
	Relation string    `yaml:"relation" json:"relation" toml:"relation"`
	RHS      float64   `yaml:"rhs" json:"rhs" toml:"rhs"`
}

// TermDef is one coefficient of a constraint. Var uses the model variable
// names: flow[A,B], active[A,B] or open[N].
type TermDef struct {
	Var  string  `yaml:"var" json:"var" toml:"var"`
	Coef float64 `yaml:"coef" json:"coef" toml:"coef"`
}

// Description converts f. An empty sense means minimize. The result is not
// validated; the builder does that.
func (f File) Description() (problem.Description, error) {
	d := problem.Description{
		Name:  f.Name,
		Sense: problem.Sense(f.Sense),
		Nodes: make([]problem.Node, 0, len(f.Nodes)),
		Arcs:  make([]problem.Arc, 0, len(f.Arcs)),
	}
	if d.Sense == "" {
		d.Sense = problem.Minimize
	}
	for _, n := range f.Nodes {
		node := problem.Node{
			ID:             n.ID,
			Role:           problem.Role(n.Role),
			Amount:         n.Amount,
			ActivationCost: n.ActivationCost,
		}
		if n.Relation != "" {
			rel, err := problem.ParseRelation(n.Relation)
			if err != nil {
				return problem.Description{}, fmt.Errorf("node %s: %w", n.ID, err)
			}
			node.Relation = rel
		}
		d.Nodes = append(d.Nodes, node)
	}
	for _, a := range f.Arcs {
		d.Arcs = append(d.Arcs, a.arc())
	}
	for i, c := range f.Constraints {
		rel, err := problem.ParseRelation(c.Relation)
		if err != nil {
			return problem.Description{}, fmt.Errorf("constraint %d (%s): %w", i, c.Name, err)
		}
		lc := problem.LinearConstraint{Name: c.Name, Relation: rel, RHS: c.RHS}
		for _, t := range c.Terms {
			ref, err := problem.ParseVarRef(t.Var)
			if err != nil {
				return problem.Description{}, fmt.Errorf("constraint %d (%s): %w", i, c.Name, err)
			}
			lc.Terms = append(lc.Terms, problem.Term{Var: ref, Coef: t.Coef})
		}
		d.Constraints = append(d.Constraints, lc)
	}
	return d, nil
}

func (a ArcDef) arc() problem.Arc {
	return problem.Arc{
		From:       a.From,
		To:         a.To,
		Cost:       a.Cost,
		Capacity:   a.Capacity,
		Activation: a.Activation,
		MinFlow:    a.MinFlow,
		FixedCost:  a.FixedCost,
	}
}

// FromDescription is the inverse of File.Description.
func FromDescription(d problem.Description) File {
	f := File{Name: d.Name, Sense: string(d.Sense)}
	for _, n := range d.Nodes {
		f.Nodes = append(f.Nodes, NodeDef{
			ID:             n.ID,
			Role:           string(n.Role),
			Amount:         n.Amount,
			Relation:       string(n.Relation),
			ActivationCost: n.ActivationCost,
		})
	}
	for _, a := range d.Arcs {
		f.Arcs = append(f.Arcs, ArcDef{
			From:       a.From,
			To:         a.To,
			Cost:       a.Cost,
			Capacity:   a.Capacity,
			Activation: a.Activation,
			MinFlow:    a.MinFlow,
			FixedCost:  a.FixedCost,
		})
	}
	for _, c := range d.Constraints {
		cd := ConstraintDef{Name: c.Name, Relation: string(c.Relation), RHS: c.RHS}
		for _, t := range c.Terms {
			cd.Terms = append(cd.Terms, TermDef{Var: t.Var.String(), Coef: t.Coef})
		}
		f.Constraints = append(f.Constraints, cd)
	}
	return f
}
