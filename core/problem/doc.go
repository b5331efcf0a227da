// Package problem defines the declarative description of a capacitated
// network-flow / facility-assignment problem and the structured Solution
// returned for it.
//
// A Description lists supply, demand and transshipment nodes, the arcs
// between them and optional cross-cutting linear constraints over the
// variables the builder creates (flow[FROM,TO], active[FROM,TO],
// open[NODE]). Descriptions are values: the builder and the interpreter
// read them but never modify them.
//
// Validation happens before any model is built. Malformed descriptions
// fail with a *ValidationError or *UnknownVariableError, both of which
// match ErrValidation with errors.Is.
package problem
