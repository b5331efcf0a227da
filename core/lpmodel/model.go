// Package lpmodel holds the solver-facing form of a linear or mixed-integer
// program: bounded variables, a linear objective and linear constraints.
package lpmodel

import (
	"errors"
	"fmt"
	"math"
)

// Domain is the value domain of a variable.
type Domain int

const (
	Continuous Domain = iota
	Integer
	Binary
)

func (d Domain) String() string {
	switch d {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Op is the relational operator of a constraint row.
type Op int

const (
	LE Op = iota
	GE
	EQ
)

func (o Op) String() string {
	switch o {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "=="
	default:
		return "?"
	}
}

// Sense is the optimisation direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// VarID indexes a variable inside its Model.
type VarID int

// Variable is a decision variable. Binary variables always have bounds [0,1].
type Variable struct {
	Name   string
	Lower  float64
	Upper  float64
	Domain Domain
}

// Term is coefficient × variable.
type Term struct {
	Var  VarID
	Coef float64
}

// Constraint is Σ terms (op) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Op    Op
	RHS   float64
}

// Objective is sense(Σ terms + Offset).
type Objective struct {
	Sense  Sense
	Terms  []Term
	Offset float64
}

var (
	// ErrDuplicateVariable is returned when a variable name is reused.
	ErrDuplicateVariable = errors.New("lpmodel: duplicate variable")
	// ErrInvalidBounds is returned for NaN bounds or lower > upper.
	ErrInvalidBounds = errors.New("lpmodel: invalid bounds")
	// ErrUnknownVariable is returned for terms referencing a missing variable.
	ErrUnknownVariable = errors.New("lpmodel: unknown variable")
)

// Model is a linear program with optional integrality. It is built by one
// owner and handed to a solver; it is not safe for concurrent mutation.
type Model struct {
	Name        string
	Variables   []Variable
	Constraints []Constraint
	Objective   Objective

	index map[string]VarID
}

// New returns an empty model.
func New(name string) *Model {
	return &Model{Name: name, index: make(map[string]VarID)}
}

// AddVariable appends a variable and returns its id. Use math.Inf(1) for an
// unbounded upper limit.
func (m *Model) AddVariable(name string, lower, upper float64, domain Domain) (VarID, error) {
	if m.index == nil {
		m.index = make(map[string]VarID)
	}
	if _, ok := m.index[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateVariable, name)
	}
	if domain == Binary {
		lower, upper = math.Max(lower, 0), math.Min(upper, 1)
	}
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper || math.IsInf(lower, 1) || math.IsInf(upper, -1) {
		return 0, fmt.Errorf("%w: %s [%v, %v]", ErrInvalidBounds, name, lower, upper)
	}
	id := VarID(len(m.Variables))
	m.Variables = append(m.Variables, Variable{Name: name, Lower: lower, Upper: upper, Domain: domain})
	m.index[name] = id
	return id, nil
}

// Lookup returns the id of the named variable.
func (m *Model) Lookup(name string) (VarID, bool) {
	id, ok := m.index[name]
	return id, ok
}

// AddConstraint appends a constraint row.
func (m *Model) AddConstraint(name string, terms []Term, op Op, rhs float64) error {
	if err := m.checkTerms(terms); err != nil {
		return fmt.Errorf("constraint %s: %w", name, err)
	}
	m.Constraints = append(m.Constraints, Constraint{Name: name, Terms: terms, Op: op, RHS: rhs})
	return nil
}

// SetObjective replaces the objective.
func (m *Model) SetObjective(sense Sense, terms []Term, offset float64) error {
	if err := m.checkTerms(terms); err != nil {
		return fmt.Errorf("objective: %w", err)
	}
	m.Objective = Objective{Sense: sense, Terms: terms, Offset: offset}
	return nil
}

func (m *Model) checkTerms(terms []Term) error {
	for _, t := range terms {
		if t.Var < 0 || int(t.Var) >= len(m.Variables) {
			return fmt.Errorf("%w: id %d", ErrUnknownVariable, t.Var)
		}
	}
	return nil
}

// HasIntegers reports whether any variable is integer or binary.
func (m *Model) HasIntegers() bool {
	for _, v := range m.Variables {
		if v.Domain != Continuous {
			return true
		}
	}
	return false
}

// Eval returns Σ coef·x over the terms.
func Eval(terms []Term, x []float64) float64 {
	var sum float64
	for _, t := range terms {
		sum += t.Coef * x[t.Var]
	}
	return sum
}

// ObjectiveValue evaluates the objective at x, offset included.
func (m *Model) ObjectiveValue(x []float64) float64 {
	return Eval(m.Objective.Terms, x) + m.Objective.Offset
}

// Satisfied reports whether the constraint holds at x within tol.
func (c Constraint) Satisfied(x []float64, tol float64) bool {
	lhs := Eval(c.Terms, x)
	switch c.Op {
	case LE:
		return lhs <= c.RHS+tol
	case GE:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}
