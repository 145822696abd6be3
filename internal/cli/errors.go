package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"ledgerforge/internal/compile"
	"ledgerforge/internal/config"
	"ledgerforge/internal/core"
	"ledgerforge/internal/dag"
	"ledgerforge/internal/deploy"
	"ledgerforge/internal/node"
)

const (
	ExitSuccess           = 0
	ExitRunFailure        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// CLIResult is the outcome of Run.
type CLIResult struct {
	ExitCode int
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode maps an error returned by a command to a semantic exit code.
//
//   - source, compile, deploy and node failures exit 1
//   - bad flags or arguments exit 2
//   - configuration problems exit 3
//   - storage failures and anything unrecognized exit 4
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	switch {
	case errors.Is(err, core.ErrStorage):
		return ExitInternalError
	case errors.Is(err, config.ErrInvalid):
		return ExitConfigError
	case errors.Is(err, dag.ErrDependencyNotFound),
		errors.Is(err, dag.ErrCyclicDependency),
		errors.Is(err, dag.ErrInvalidGraph),
		errors.Is(err, compile.ErrCompileFailed),
		errors.Is(err, deploy.ErrDeployFailed),
		errors.Is(err, deploy.ErrNotDeployed),
		errors.Is(err, node.ErrNotReady),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ExitRunFailure
	default:
		return ExitInternalError
	}
}
