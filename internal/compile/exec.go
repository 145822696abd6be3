package compile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ledgerforge/internal/config"
	"ledgerforge/internal/core"
	"ledgerforge/internal/registry"
)

// Factory builds a Compiler from configuration. workDir is the directory the
// compiler runs in.
type Factory func(cfg config.CompilerConfig, workDir string) (Compiler, error)

// NewDriverRegistry returns a registry holding the built-in compiler drivers.
func NewDriverRegistry() *registry.Registry[Factory] {
	r := registry.New[Factory]("compiler")
	r.MustRegister("exec", NewExecCompiler)
	return r
}

// ExecCompiler runs an external command per batch. The Request is written to
// its stdin as JSON and a Result is read from its stdout.
type ExecCompiler struct {
	Args    []string
	Dir     string
	Timeout time.Duration
}

// NewExecCompiler is the Factory of the "exec" driver.
func NewExecCompiler(cfg config.CompilerConfig, workDir string) (Compiler, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("compiler.command is required for the exec driver")
	}
	args, err := core.SplitCommand(cfg.Command)
	if err != nil {
		return nil, err
	}
	return &ExecCompiler{Args: args, Dir: workDir, Timeout: cfg.Timeout}, nil
}

func (c *ExecCompiler) Compile(ctx context.Context, req Request) (*Result, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling compile request: %w", err)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	res, err := core.RunCommand(ctx, core.Command{Args: c.Args, Dir: c.Dir, Stdin: input})
	if err != nil {
		return nil, err
	}

	var out Result
	dec := json.NewDecoder(bytes.NewReader(res.Stdout))
	if decErr := dec.Decode(&out); decErr != nil {
		if res.ExitCode != 0 {
			return nil, fmt.Errorf("compiler exited with status %d: %s", res.ExitCode, firstLine(res.Stderr))
		}
		return nil, fmt.Errorf("parsing compiler output: %w", decErr)
	}

	if res.ExitCode != 0 && !hasBlocking(out.Diagnostics) {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{
			Severity: SeverityError,
			Message:  fmt.Sprintf("compiler exited with status %d: %s", res.ExitCode, firstLine(res.Stderr)),
		})
	}
	return &out, nil
}

func hasBlocking(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity.Blocking() {
			return true
		}
	}
	return false
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "no output"
	}
	return s
}
