package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/google/shlex"
)

// Command describes one invocation of an external collaborator process
// (compiler wrapper, chain client wrapper).
type Command struct {
	// Args is the argv; Args[0] is resolved via PATH.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env entries are appended to the inherited process environment.
	Env []string

	// Stdin is written to the process's standard input.
	Stdin []byte
}

// CommandResult contains the captured output of a finished process.
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// SplitCommand splits a configured command line using shell quoting rules.
func SplitCommand(line string) ([]string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parsing command %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("command is empty")
	}
	return args, nil
}

// RunCommand runs cmd to completion and captures its output.
//
// A non-zero exit status is not an error: it is reported in ExitCode so the
// caller can still parse diagnostics from stdout.
//
// On context cancellation the whole process group is killed and the context
// error is returned; no partial result is reported.
func RunCommand(ctx context.Context, cmd Command) (*CommandResult, error) {
	if len(cmd.Args) == 0 {
		return nil, fmt.Errorf("command is empty")
	}

	c := exec.Command(cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdin = bytes.NewReader(cmd.Stdin)

	// Set process group so we can kill the entire process tree on cancellation
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Args[0], err)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		if c.Process != nil {
			_ = syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("%s cancelled: %w", cmd.Args[0], ctx.Err())
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute %s: %w", cmd.Args[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}
