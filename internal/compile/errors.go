package compile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCompileFailed is the sentinel for a batch rejected by the compiler.
var ErrCompileFailed = errors.New("compile failed")

// BatchError reports a batch that produced blocking diagnostics or an
// incomplete answer. No artifact of the batch was cached.
type BatchError struct {
	Units       []string
	Diagnostics []Diagnostic
	Reason      string
}

func (e *BatchError) Error() string {
	if e == nil {
		return ""
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", ErrCompileFailed.Error(), e.Reason)
	}
	var msgs []string
	for _, d := range e.Diagnostics {
		if d.Severity.Blocking() {
			msgs = append(msgs, d.String())
		}
	}
	return fmt.Sprintf("%s: %s", ErrCompileFailed.Error(), strings.Join(msgs, "; "))
}

func (e *BatchError) Is(target error) bool { return target == ErrCompileFailed }
