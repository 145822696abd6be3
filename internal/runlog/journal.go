package runlog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"ledgerforge/internal/core"
	"ledgerforge/internal/report"
)

// Journal records the lifecycle of a single run in a Store.
//
// A nil *Journal is valid and records nothing.
type Journal struct {
	Store *Store
	// Clock defaults to time.Now.
	Clock func() time.Time

	run Run
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func (j *Journal) now() time.Time {
	if j.Clock != nil {
		return j.Clock().UTC()
	}
	return time.Now().UTC()
}

// Start persists a running Run for command.
func (j *Journal) Start(runID, command, network string) error {
	if j == nil {
		return nil
	}
	if j.Store == nil {
		return errors.New("Store is required")
	}
	j.run = Run{
		RunID:     runID,
		Command:   command,
		Network:   network,
		Status:    RunStatusRunning,
		StartTime: j.now(),
	}
	return j.Store.SaveRun(j.run)
}

// Run returns the current run record.
func (j *Journal) Run() Run {
	if j == nil {
		return Run{}
	}
	return j.run
}

// SetFingerprint stores the digest of hashes on the running record.
func (j *Journal) SetFingerprint(hashes map[string]core.IdentityHash) error {
	if j == nil || j.run.RunID == "" {
		return nil
	}
	j.run.Fingerprint = Fingerprint(hashes)
	return j.Store.SaveRun(j.run)
}

// Finish closes the run. A nil runErr marks it succeeded; otherwise the
// classified failure is written next to it. rep is stored when it has events.
func (j *Journal) Finish(rep report.Report, runErr error) error {
	if j == nil || j.run.RunID == "" {
		return nil
	}
	var errs []error
	if len(rep.Events) > 0 {
		if err := j.Store.SaveReport(j.run.RunID, rep); err != nil {
			errs = append(errs, err)
		}
	}
	end := j.now()
	if end.Before(j.run.StartTime) {
		end = j.run.StartTime
	}
	j.run.EndTime = &end
	j.run.Status = RunStatusSucceeded
	if runErr != nil {
		j.run.Status = RunStatusFailed
		f, err := Classify(runErr)
		if err != nil {
			errs = append(errs, err)
		} else if err := j.Store.SaveFailure(j.run.RunID, f); err != nil {
			errs = append(errs, err)
		}
	}
	if err := j.Store.SaveRun(j.run); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("recording run %s: %w", j.run.RunID, errors.Join(errs...))
	}
	return nil
}

// Fingerprint digests unit names and hashes in name order.
func Fingerprint(hashes map[string]core.IdentityHash) string {
	if len(hashes) == 0 {
		return ""
	}
	names := make([]string, 0, len(hashes))
	for n := range hashes {
		names = append(names, n)
	}
	sort.Strings(names)
	h := sha256.New()
	for _, n := range names {
		fmt.Fprintf(h, "%s=%s\n", n, hashes[n])
	}
	return hex.EncodeToString(h.Sum(nil))
}
