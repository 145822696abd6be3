package store

// schemaVersion is recorded in the metadata table on open.
const schemaVersion = "1"

// schema contains the SQL statements to create the ledgerforge database schema.
const schema = `
-- Build cache: one artifact per (unit, identity hash). Rows are never deleted.
CREATE TABLE IF NOT EXISTS artifacts (
    unit_name     TEXT NOT NULL,
    identity_hash TEXT NOT NULL,
    abi           TEXT NOT NULL,
    bytecode      BLOB NOT NULL,
    source_map    TEXT,
    PRIMARY KEY (unit_name, identity_hash)
);

-- Deployment ledger: append-only, newest row per (network, unit) is the latest deployment.
CREATE TABLE IF NOT EXISTS ledger_entries (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    network       TEXT NOT NULL,
    unit_name     TEXT NOT NULL,
    identity_hash TEXT NOT NULL,
    address       TEXT NOT NULL,
    deployed_at   TEXT NOT NULL,
    metadata_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_unit ON ledger_entries(network, unit_name, id);

-- Metadata table
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT
);
`
