package deploy

import (
	"errors"
	"fmt"
)

// ErrDeployFailed is the sentinel for a rejected or failed deployment.
var ErrDeployFailed = errors.New("deploy failed")

// ErrNotCompiled is returned when the artifact to deploy is not cached.
var ErrNotCompiled = errors.New("artifact not in cache")

// DeployError reports the unit whose deployment stopped the run.
type DeployError struct {
	Unit string
	Err  error
}

func (e *DeployError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", ErrDeployFailed.Error(), e.Unit, e.Err)
}

func (e *DeployError) Unwrap() []error { return []error{ErrDeployFailed, e.Err} }
