package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ledgerforge/internal/core"
	"ledgerforge/internal/ledger"
)

var _ ledger.Backend = (*Store)(nil)

// Load returns every unit's history on network, most-recent-first.
func (s *Store) Load(network string) (map[string][]ledger.Entry, error) {
	rows, err := s.db.Query(`
		SELECT unit_name, identity_hash, address, deployed_at, metadata_json
		FROM ledger_entries
		WHERE network = ?
		ORDER BY unit_name, id DESC
	`, network)
	if err != nil {
		return nil, fmt.Errorf("querying ledger entries: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]ledger.Entry)
	for rows.Next() {
		var (
			e          ledger.Entry
			hash       string
			deployedAt string
			metaJSON   sql.NullString
		)
		if err := rows.Scan(&e.UnitName, &hash, &e.Address, &deployedAt, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		e.IdentityHash = core.IdentityHash(hash)
		e.DeployedAt, err = time.Parse(time.RFC3339Nano, deployedAt)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %s: parsing deployed_at: %w", e.UnitName, err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("ledger entry %s: parsing metadata: %w", e.UnitName, err)
			}
		}
		out[e.UnitName] = append(out[e.UnitName], e)
	}
	return out, rows.Err()
}

// Append inserts entries in one transaction. Existing rows are never touched.
func (s *Store) Append(network string, entries []ledger.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ledger_entries (network, unit_name, identity_hash, address, deployed_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("invalid ledger entry: %w", err)
		}
		var meta sql.NullString
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshaling metadata: %w", err)
			}
			meta = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.Exec(network, e.UnitName, string(e.IdentityHash), e.Address,
			e.DeployedAt.UTC().Format(time.RFC3339Nano), meta); err != nil {
			return fmt.Errorf("inserting ledger entry %s: %w", e.UnitName, err)
		}
	}
	return tx.Commit()
}
