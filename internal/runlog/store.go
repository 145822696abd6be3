package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ledgerforge/internal/core"
	"ledgerforge/internal/report"
)

// Store provides persistent storage for run records under:
//
//	<dir>/<run-id>/run.json
//	<dir>/<run-id>/failure.json
//	<dir>/<run-id>/report.json
//
// All writes are atomic and durable (file sync + atomic rename + dir sync).
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("runs dir is required")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) runDir(runID string) string  { return filepath.Join(s.dir, runID) }
func (s *Store) runPath(runID string) string { return filepath.Join(s.runDir(runID), "run.json") }
func (s *Store) failurePath(runID string) string {
	return filepath.Join(s.runDir(runID), "failure.json")
}
func (s *Store) reportPath(runID string) string { return filepath.Join(s.runDir(runID), "report.json") }

// ListRunIDs returns all run IDs currently present on disk, sorted
// lexicographically.
func (s *Store) ListRunIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.TrimSpace(e.Name()) == "" {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Recent loads up to limit runs, most recently started first. Directories
// without a readable run.json are skipped. limit <= 0 means all.
func (s *Store) Recent(limit int) ([]Run, error) {
	ids, err := s.ListRunIDs()
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.LoadRun(id)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartTime.Equal(runs[j].StartTime) {
			return runs[i].StartTime.After(runs[j].StartTime)
		}
		return runs[i].RunID < runs[j].RunID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *Store) SaveRun(run Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	return s.write(run.RunID, s.runPath(run.RunID), "run", run)
}

func (s *Store) LoadRun(runID string) (Run, error) {
	var run Run
	if strings.TrimSpace(runID) == "" {
		return Run{}, errors.New("runID is required")
	}
	if err := core.ReadJSONStrict(s.runPath(runID), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

func (s *Store) SaveFailure(runID string, failure Failure) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID is required")
	}
	if err := failure.Validate(); err != nil {
		return fmt.Errorf("invalid failure: %w", err)
	}
	return s.write(runID, s.failurePath(runID), "failure", failure)
}

// LoadFailure returns the failure of runID, or ok=false when the run has none.
func (s *Store) LoadFailure(runID string) (f Failure, ok bool, err error) {
	if strings.TrimSpace(runID) == "" {
		return Failure{}, false, errors.New("runID is required")
	}
	if err := core.ReadJSONStrict(s.failurePath(runID), &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Failure{}, false, nil
		}
		return Failure{}, false, err
	}
	if err := f.Validate(); err != nil {
		return Failure{}, false, fmt.Errorf("invalid failure on disk: %w", err)
	}
	return f, true, nil
}

func (s *Store) SaveReport(runID string, rep report.Report) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID is required")
	}
	if err := rep.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}
	return s.write(runID, s.reportPath(runID), "report", rep)
}

func (s *Store) LoadReport(runID string) (report.Report, error) {
	var rep report.Report
	if strings.TrimSpace(runID) == "" {
		return report.Report{}, errors.New("runID is required")
	}
	if err := core.ReadJSONStrict(s.reportPath(runID), &rep); err != nil {
		return report.Report{}, err
	}
	return rep, nil
}

func (s *Store) write(runID, path, what string, v any) error {
	if err := core.EnsureDirDurable(s.runDir(runID), 0o755); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	data, err := core.MarshalStable(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", what, err)
	}
	if err := core.WriteFileAtomicDurable(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}
