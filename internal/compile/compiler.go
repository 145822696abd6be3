// Package compile decides which units need recompiling and drives the
// external compiler over them in a single batch.
package compile

import (
	"context"
	"fmt"
	"strings"

	"ledgerforge/internal/core"
)

// Severity classifies a compiler diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Blocking reports whether the diagnostic fails the batch.
func (s Severity) Blocking() bool { return strings.EqualFold(string(s), string(SeverityError)) }

// Diagnostic is one compiler message.
type Diagnostic struct {
	// Unit is empty for batch-level messages.
	Unit     string   `json:"unit,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Unit == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Unit, d.Severity, d.Message)
}

// SourceUnit is one unit submitted to the compiler.
type SourceUnit struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Source string `json:"source"`
}

// Request is one compiler batch.
type Request struct {
	Units []SourceUnit `json:"units"`
}

// Result is the compiler's answer to a Request.
type Result struct {
	Artifacts   map[string]*core.Artifact `json:"artifacts"`
	Diagnostics []Diagnostic              `json:"diagnostics"`
}

// Compiler turns a batch of units into artifacts.
//
// Compile returns an error only when the compiler could not be run or its
// answer could not be understood. Source-level problems are reported as
// Diagnostics.
type Compiler interface {
	Compile(ctx context.Context, req Request) (*Result, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, req Request) (*Result, error)

func (f CompilerFunc) Compile(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
