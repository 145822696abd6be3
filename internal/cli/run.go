package cli

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"ledgerforge/internal/runlog"
)

// Run executes one ledgerforge invocation and reports its exit code.
//
// The returned error is what should be shown to the user; it is nil exactly
// when the exit code is ExitSuccess.
func Run(ctx context.Context, args []string, env Env) (res CLIResult, err error) {
	a := newApp(env)
	defer func() {
		if r := recover(); r != nil {
			if a.logger != nil {
				a.logger.Error("panic", "value", r, "stack", string(debug.Stack()))
			}
			res = CLIResult{ExitCode: ExitInternalError}
			err = fmt.Errorf("internal error: %w", &runlog.PanicError{Value: r})
		}
	}()

	root := newRootCommand(a)
	root.SetArgs(args)
	err = root.ExecuteContext(ctx)
	if err == nil {
		return CLIResult{ExitCode: ExitSuccess}, nil
	}

	// Cobra rejects unknown commands and flags before any hook runs.
	var invErr *InvocationError
	if !a.started && !errors.As(err, &invErr) {
		return CLIResult{ExitCode: ExitInvalidInvocation}, err
	}
	return CLIResult{ExitCode: ExitCode(err)}, err
}
