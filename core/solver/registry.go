package solver

import (
	"fmt"

	"github.com/kilianp07/flownet/core/factory"
)

var registry = factory.NewRegistry[Solver]()

// Register adds a solver factory under name.
func Register(name string, f factory.Factory[Solver]) error {
	return registry.Register(name, f)
}

// New creates the solver described by cfg. Unknown types fail with
// ErrSolverUnavailable.
func New(cfg factory.ModuleConfig) (Solver, error) {
	s, err := registry.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolverUnavailable, err)
	}
	return s, nil
}

// Available lists the registered solver names.
func Available() []string { return registry.Names() }
