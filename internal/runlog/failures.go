package runlog

import (
	"context"
	"errors"
	"fmt"

	"ledgerforge/internal/compile"
	"ledgerforge/internal/core"
	"ledgerforge/internal/dag"
	"ledgerforge/internal/deploy"
	"ledgerforge/internal/node"
)

// PanicError wraps a value recovered from a panic during a run.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Classify maps a run error onto the failure taxonomy.
//
// Unknown errors are system failures.
func Classify(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}
	f := Failure{ErrorMessage: err.Error()}

	var nf *dag.DependencyNotFoundError
	var de *deploy.DeployError
	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		f.FailureClass, f.ErrorCode = FailureClassSystem, "Panic"
	case errors.As(err, &nf):
		f.FailureClass, f.ErrorCode = FailureClassGraph, "DependencyNotFound"
		f.Unit = unitPtr(nf.Unit)
	case errors.Is(err, dag.ErrCyclicDependency):
		f.FailureClass, f.ErrorCode = FailureClassGraph, "CyclicDependency"
	case errors.Is(err, dag.ErrInvalidGraph):
		f.FailureClass, f.ErrorCode = FailureClassGraph, "InvalidGraph"
	case errors.Is(err, core.ErrStorage):
		f.FailureClass, f.ErrorCode, f.Retryable = FailureClassStorage, "StorageFailure", true
	case errors.Is(err, compile.ErrCompileFailed):
		f.FailureClass, f.ErrorCode = FailureClassCompile, "CompileFailed"
	case errors.As(err, &de):
		f.FailureClass, f.ErrorCode, f.Retryable = FailureClassDeploy, "DeployFailed", true
		f.Unit = unitPtr(de.Unit)
		if errors.Is(err, deploy.ErrNotCompiled) {
			f.ErrorCode, f.Retryable = "NotCompiled", false
		}
	case errors.Is(err, node.ErrNotReady):
		f.FailureClass, f.ErrorCode, f.Retryable = FailureClassSystem, "NodeNotReady", true
	case errors.Is(err, context.Canceled):
		f.FailureClass, f.ErrorCode, f.Retryable = FailureClassSystem, "Cancelled", true
	case errors.Is(err, context.DeadlineExceeded):
		f.FailureClass, f.ErrorCode, f.Retryable = FailureClassSystem, "DeadlineExceeded", true
	default:
		f.FailureClass, f.ErrorCode, f.Retryable = FailureClassSystem, "UnknownError", true
	}
	return f, nil
}

func unitPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
