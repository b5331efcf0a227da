package problem

import (
	"errors"
	"fmt"
)

// ErrValidation matches every error raised for a malformed Description.
var ErrValidation = errors.New("invalid problem description")

// ValidationError reports a malformed node, arc or constraint.
type ValidationError struct {
	// Field locates the offending element, e.g. "arcs[3]" or "nodes[W1]".
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnknownVariableError reports a cross-cutting constraint that references a
// variable the builder does not create.
type UnknownVariableError struct {
	Constraint string
	Ref        VarRef
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("%s: constraint %q references unknown variable %s", ErrValidation, e.Constraint, e.Ref)
}

// Is makes errors.Is(err, ErrValidation) succeed.
func (e *UnknownVariableError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
