package store

import (
	"database/sql"
	"errors"
	"fmt"

	"ledgerforge/internal/core"
)

var _ core.Cache = (*Store)(nil)

// Lookup retrieves a cached artifact. Returns nil, nil on a miss.
func (s *Store) Lookup(name string, hash core.IdentityHash) (*core.Artifact, error) {
	var (
		abi       string
		bytecode  []byte
		sourceMap sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT abi, bytecode, source_map FROM artifacts
		WHERE unit_name = ? AND identity_hash = ?
	`, name, string(hash)).Scan(&abi, &bytecode, &sourceMap)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Storagef(err, "reading cache entry %s@%s", name, hash.Short())
	}
	return &core.Artifact{
		ABI:       []byte(abi),
		Bytecode:  bytecode,
		SourceMap: sourceMap.String,
	}, nil
}

// Store records an artifact. Storing the same key again replaces the row
// (last writer wins).
func (s *Store) Store(name string, hash core.IdentityHash, artifact *core.Artifact) error {
	if artifact == nil {
		return fmt.Errorf("artifact for %s is nil", name)
	}
	if name == "" || hash == "" {
		return fmt.Errorf("cache key requires unit name and hash")
	}
	abi := string(artifact.ABI)
	if abi == "" {
		abi = "null"
	}
	bytecode := []byte(artifact.Bytecode)
	if bytecode == nil {
		bytecode = []byte{}
	}
	_, err := s.db.Exec(`
		INSERT INTO artifacts (unit_name, identity_hash, abi, bytecode, source_map)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(unit_name, identity_hash) DO UPDATE SET
			abi = excluded.abi,
			bytecode = excluded.bytecode,
			source_map = excluded.source_map
	`, name, string(hash), abi, bytecode, nullString(artifact.SourceMap))
	if err != nil {
		return core.Storagef(err, "writing cache entry %s@%s", name, hash.Short())
	}
	return nil
}

// ArtifactCount returns the number of cached artifacts.
func (s *Store) ArtifactCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM artifacts").Scan(&n)
	return n, err
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
