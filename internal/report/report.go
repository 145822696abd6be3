package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Phase names the pipeline stage an event belongs to.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseDeploy  Phase = "deploy"
)

// Status is the per-unit outcome shown to the user.
//
// The string values are part of the report's JSON output; do not rename.
type Status string

const (
	StatusUnchanged       Status = "unchanged — skipped"
	StatusRecompiled      Status = "recompiled"
	StatusCompileFailed   Status = "compile failed"
	StatusRedeployed      Status = "redeployed"
	StatusDeployFailed    Status = "deploy failed"
	StatusAlreadyDeployed Status = "already deployed"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusUnchanged,
	StatusRecompiled,
	StatusCompileFailed,
	StatusAlreadyDeployed,
	StatusRedeployed,
	StatusDeployFailed,
}

// Failed reports whether s is a failure status.
func (s Status) Failed() bool {
	return s == StatusCompileFailed || s == StatusDeployFailed
}

// Event is the outcome of one unit in one phase.
type Event struct {
	Phase  Phase  `json:"phase"`
	Unit   string `json:"unit"`
	Status Status `json:"status"`

	// Hash is the unit's IdentityHash for this run.
	Hash string `json:"hash,omitempty"`

	// Address is set for deploy events that reached the ledger.
	Address string `json:"address,omitempty"`

	// Detail is a short human explanation (diagnostic, reason, bytecode size).
	Detail string `json:"detail,omitempty"`
}

// Report is the ordered outcome of one run.
type Report struct {
	RunID   string  `json:"run_id"`
	Network string  `json:"network,omitempty"`
	Events  []Event `json:"events"`
}

// Validate checks basic invariants.
func (r *Report) Validate() error {
	if r == nil {
		return errors.New("report is nil")
	}
	var errs []error
	for i, e := range r.Events {
		if e.Unit == "" {
			errs = append(errs, fmt.Errorf("events[%d].unit is required", i))
		}
		switch e.Phase {
		case PhaseCompile, PhaseDeploy:
		default:
			errs = append(errs, fmt.Errorf("events[%d].phase %q is unknown", i, e.Phase))
		}
		if e.Status == "" {
			errs = append(errs, fmt.Errorf("events[%d].status is required", i))
		}
	}
	return errors.Join(errs...)
}

// Canonicalize orders events by phase (compile before deploy), then by the
// position of the unit in order. Units missing from order sort after the
// known ones, by name.
func (r *Report) Canonicalize(order []string) {
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	rank := func(unit string) int {
		if p, ok := pos[unit]; ok {
			return p
		}
		return len(order)
	}
	sort.SliceStable(r.Events, func(i, j int) bool {
		a, b := r.Events[i], r.Events[j]
		if phaseOrder(a.Phase) != phaseOrder(b.Phase) {
			return phaseOrder(a.Phase) < phaseOrder(b.Phase)
		}
		if rank(a.Unit) != rank(b.Unit) {
			return rank(a.Unit) < rank(b.Unit)
		}
		return a.Unit < b.Unit
	})
}

func phaseOrder(p Phase) int {
	switch p {
	case PhaseCompile:
		return 10
	case PhaseDeploy:
		return 20
	default:
		return 1000
	}
}

// Counts returns the number of events per status.
func (r *Report) Counts() map[Status]int {
	out := make(map[Status]int)
	for _, e := range r.Events {
		out[e.Status]++
	}
	return out
}

// Failed reports whether any event has a failure status.
func (r *Report) Failed() bool {
	for _, e := range r.Events {
		if e.Status.Failed() {
			return true
		}
	}
	return false
}

// Phase returns the events of one phase, in report order.
func (r *Report) Phase(p Phase) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Phase == p {
			out = append(out, e)
		}
	}
	return out
}

// MarshalJSON emits an empty events array rather than null.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	if r.Events == nil {
		r.Events = []Event{}
	}
	return json.Marshal(plain(r))
}
