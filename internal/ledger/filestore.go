package ledger

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"ledgerforge/internal/core"
)

// FileStore persists ledgers as one JSON document per network under:
//
//	<dir>/<query-escaped network>.json
//
// All writes are atomic and durable (file sync + atomic rename + dir sync).
type FileStore struct {
	dir string
}

// document is the on-disk form of one network's ledger.
type document struct {
	Network string             `json:"network"`
	Units   map[string][]Entry `json:"units"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("ledger dir is required")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(network string) string {
	return filepath.Join(s.dir, url.QueryEscape(network)+".json")
}

// Load reads network's ledger. A missing file is an empty ledger.
func (s *FileStore) Load(network string) (map[string][]Entry, error) {
	if strings.TrimSpace(network) == "" {
		return nil, errors.New("network is required")
	}
	var doc document
	if err := core.ReadJSONStrict(s.path(network), &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]Entry{}, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", s.path(network), err)
	}
	if doc.Network != network {
		return nil, fmt.Errorf("invalid ledger on disk: file %s records network %q", s.path(network), doc.Network)
	}
	if doc.Units == nil {
		doc.Units = map[string][]Entry{}
	}
	for unit, entries := range doc.Units {
		for i := range entries {
			entries[i].UnitName = unit
			if err := entries[i].Validate(); err != nil {
				return nil, fmt.Errorf("invalid ledger on disk: units[%q][%d]: %w", unit, i, err)
			}
		}
	}
	return doc.Units, nil
}

// Append re-reads the stored document, prepends entries and rewrites it.
//
// Re-reading keeps entries written by another process since this one loaded
// the ledger; nothing already on disk is ever dropped.
func (s *FileStore) Append(network string, entries []Entry) error {
	units, err := s.Load(network)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("invalid ledger entry: %w", err)
		}
		prev := units[e.UnitName]
		next := make([]Entry, 0, len(prev)+1)
		next = append(next, e)
		next = append(next, prev...)
		units[e.UnitName] = next
	}

	if err := core.EnsureDirDurable(s.dir, 0o755); err != nil {
		return fmt.Errorf("ensure ledger dir: %w", err)
	}
	data, err := core.MarshalStable(document{Network: network, Units: units})
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := core.WriteFileAtomicDurable(s.path(network), data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}
