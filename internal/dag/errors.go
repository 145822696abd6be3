package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph       = errors.New("invalid dependency graph")
	ErrDependencyNotFound = errors.New("dependency not found")
	ErrCyclicDependency   = errors.New("cyclic dependency")
)

// GraphError wraps deterministic graph validation failures.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

// DependencyNotFoundError reports an import that does not resolve to a known unit.
type DependencyNotFoundError struct {
	// Unit is the importing unit's name.
	Unit string
	// Ref is the import specifier exactly as declared.
	Ref string
}

func (e *DependencyNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: unit %q imports %q", ErrDependencyNotFound.Error(), e.Unit, e.Ref)
}

func (e *DependencyNotFoundError) Unwrap() error { return ErrDependencyNotFound }

// CyclicDependencyError reports an import cycle. Path starts and ends with the
// same unit name.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Path) == 0 {
		return ErrCyclicDependency.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCyclicDependency.Error(), strings.Join(e.Path, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }
