package graph

import (
	"errors"
	"fmt"
)

// Resolution errors.
var (
	// ErrCycle indicates the dependency graph contains a cycle.
	ErrCycle = errors.New("dependency cycle detected")
	// ErrMissingDependency indicates a dependency names no record in the batch.
	ErrMissingDependency = errors.New("missing dependency")
)

// CycleError names the node at which a cycle was detected.
type CycleError struct {
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v at %s", ErrCycle, e.Node)
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// MissingError names an unknown dependency and the record that requires it.
type MissingError struct {
	Name       string
	RequiredBy string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%v: %s (required by %s)", ErrMissingDependency, e.Name, e.RequiredBy)
}

func (e *MissingError) Unwrap() error { return ErrMissingDependency }
