package runlog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persistent metadata of one ledgerforge invocation.
type Run struct {
	RunID   string    `json:"run_id"`
	Command string    `json:"command"`
	Network string    `json:"network,omitempty"`
	Status  RunStatus `json:"status"`

	// Fingerprint digests every unit's IdentityHash once sources were hashed.
	Fingerprint string `json:"fingerprint,omitempty"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.Command) == "" {
		errs = append(errs, errors.New("command is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case RunStatusRunning:
		if r.EndTime != nil {
			errs = append(errs, errors.New("end_time must be null while running"))
		}
	case RunStatusSucceeded, RunStatusFailed:
		if r.EndTime == nil {
			errs = append(errs, errors.New("end_time is required once finished"))
		} else if r.EndTime.Before(r.StartTime) {
			errs = append(errs, errors.New("end_time is before start_time"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Duration is the wall time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

type FailureClass string

const (
	FailureClassGraph   FailureClass = "graph"
	FailureClassCompile FailureClass = "compile"
	FailureClassDeploy  FailureClass = "deploy"
	FailureClassStorage FailureClass = "storage"
	FailureClassSystem  FailureClass = "system"
)

// Failure is a recorded run termination reason.
//
// Retryable is true when running the same command again without changing
// sources or configuration may succeed.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Unit         *string      `json:"unit,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
	Retryable    bool         `json:"retryable"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassGraph, FailureClassCompile, FailureClassDeploy, FailureClassStorage, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Unit != nil && strings.TrimSpace(*f.Unit) == "" {
		errs = append(errs, errors.New("unit must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
