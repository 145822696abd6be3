package core

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtension is the source file extension used when none is configured.
const DefaultExtension = ".sol"

// UnitStore discovers source units on disk.
//
// Discovery is deterministic:
//   - Only regular files ending in Extension are considered.
//   - Paths are normalized to forward slashes relative to Root.
//   - Units are returned strictly sorted by Path.
//   - Unit identity is read from content only; file metadata is ignored.
type UnitStore struct {
	// Root is the directory that logical unit names are relative to.
	Root string

	// Extension selects source files (e.g. ".sol").
	Extension string

	// Extractor parses import specifiers from source text.
	Extractor ImportExtractor
}

// NewUnitStore creates a UnitStore rooted at root using the default import extractor.
func NewUnitStore(root, ext string) *UnitStore {
	if ext == "" {
		ext = DefaultExtension
	}
	return &UnitStore{Root: root, Extension: ext, Extractor: SolidityImports{}}
}

// Discover walks Root and returns every unit in discovery order.
//
// Hidden directories (names starting with ".") are skipped so cache and ledger
// directories placed under the root are never mistaken for sources.
func (s *UnitStore) Discover() ([]Unit, error) {
	if s == nil {
		return nil, fmt.Errorf("nil unit store")
	}
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, fmt.Errorf("reading source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %q is not a directory", s.Root)
	}

	var paths []string
	err = filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), s.Extension) {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source root: %w", err)
	}

	// CRITICAL: sort explicitly, do not rely on OS directory ordering.
	sort.Strings(paths)

	extractor := s.Extractor
	if extractor == nil {
		extractor = SolidityImports{}
	}

	units := make([]Unit, 0, len(paths))
	for _, rel := range paths {
		content, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("reading unit %q: %w", rel, err)
		}
		units = append(units, Unit{
			Name:    UnitName(rel, s.Extension),
			Path:    rel,
			Source:  content,
			Imports: extractor.Extract(content),
		})
	}
	return units, nil
}
