package problem

import (
	"fmt"
	"strings"
)

// Role is the part a node plays in the network.
type Role string

const (
	RoleSupply        Role = "supply"
	RoleDemand        Role = "demand"
	RoleTransshipment Role = "transshipment"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSupply, RoleDemand, RoleTransshipment:
		return true
	}
	return false
}

// Relation is the relational operator of a linear constraint.
type Relation string

const (
	RelEQ Relation = "=="
	RelLE Relation = "<="
	RelGE Relation = ">="
)

// Valid reports whether r is a known relation.
func (r Relation) Valid() bool {
	return r == RelEQ || r == RelLE || r == RelGE
}

// ParseRelation accepts the symbolic and mnemonic spellings used in problem
// files ("==", "=", "eq", "<=", "le", ">=", "ge").
func ParseRelation(s string) (Relation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "=", "eq":
		return RelEQ, nil
	case "<=", "le":
		return RelLE, nil
	case ">=", "ge":
		return RelGE, nil
	}
	return "", fmt.Errorf("unknown relation %q", s)
}

// Sense is the optimisation direction of the objective.
type Sense string

const (
	Minimize Sense = "minimize"
	Maximize Sense = "maximize"
)

// Valid reports whether s is a known sense.
func (s Sense) Valid() bool { return s == Minimize || s == Maximize }

// Node is a supply, demand or transshipment point.
type Node struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	// Amount is the capacity of a supply node, the requirement of a demand
	// node and the throughput limit of a transshipment node (0 = no limit).
	Amount float64 `json:"amount"`
	// Relation ties inbound flow to the requirement of a demand node.
	// Empty means RelEQ. Other roles must leave it empty.
	Relation Relation `json:"relation,omitempty"`
	// ActivationCost, when set, adds a binary open[ID] variable that gates
	// the node's capacity and is charged in the objective.
	ActivationCost *float64 `json:"activation_cost,omitempty"`
}

// DemandRelation returns the effective relation of a demand node.
func (n Node) DemandRelation() Relation {
	if n.Relation == "" {
		return RelEQ
	}
	return n.Relation
}

// Activated reports whether the node carries an activation binary.
func (n Node) Activated() bool { return n.ActivationCost != nil }

// Arc is a directed, cost-bearing connection between two nodes.
type Arc struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Cost float64 `json:"cost"`
	// Capacity is the upper bound of the flow variable. Nil means unbounded.
	Capacity *float64 `json:"capacity,omitempty"`
	// Activation adds a binary active[From,To] variable; flow may only be
	// positive when it is 1.
	Activation bool `json:"activation,omitempty"`
	// MinFlow is the minimum flow once activated. Zero explicitly allows an
	// activated arc to carry no flow.
	MinFlow float64 `json:"min_flow,omitempty"`
	// FixedCost is charged in the objective when the arc is activated.
	FixedCost float64 `json:"fixed_cost,omitempty"`
}

// Key returns the arc's identity.
func (a Arc) Key() ArcKey { return ArcKey{From: a.From, To: a.To} }

// ArcKey identifies an arc by its ordered endpoints.
type ArcKey struct {
	From string
	To   string
}

func (k ArcKey) String() string { return k.From + "->" + k.To }

// MarshalText allows ArcKey to be used as a JSON object key.
func (k ArcKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses the "FROM->TO" form produced by MarshalText.
func (k *ArcKey) UnmarshalText(b []byte) error {
	from, to, ok := strings.Cut(string(b), "->")
	if !ok || from == "" || to == "" {
		return fmt.Errorf("invalid arc key %q", string(b))
	}
	k.From, k.To = from, to
	return nil
}

// Term is one coefficient-variable product of a linear expression.
type Term struct {
	Var  VarRef  `json:"var"`
	Coef float64 `json:"coef"`
}

// LinearConstraint is a caller-supplied cross-cutting constraint appended to
// the generated model after all generated constraints.
type LinearConstraint struct {
	Name     string   `json:"name"`
	Terms    []Term   `json:"terms"`
	Relation Relation `json:"relation"`
	RHS      float64  `json:"rhs"`
}

// Description is the immutable input of one solve.
type Description struct {
	Name        string             `json:"name"`
	Sense       Sense              `json:"sense"`
	Nodes       []Node             `json:"nodes"`
	Arcs        []Arc              `json:"arcs"`
	Constraints []LinearConstraint `json:"constraints,omitempty"`
}

// Node returns the node with the given id.
func (d Description) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Float returns a pointer to v. It keeps literal descriptions short.
func Float(v float64) *float64 { return &v }
