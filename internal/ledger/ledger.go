// Package ledger records which IdentityHash is deployed at which address, per
// network and unit.
//
// History is append-only and ordered most-recent-first. Entries are never
// mutated or removed; redeploying a unit prepends a new entry.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ledgerforge/internal/core"
)

// Backend is durable ledger storage for one or more networks.
type Backend interface {
	// Load returns every unit's history on network, most-recent-first.
	// A network with no stored ledger yields an empty map and no error.
	Load(network string) (map[string][]Entry, error)

	// Append durably records entries on network. entries are in the order
	// they were appended (oldest first); each becomes the newest entry of its
	// unit. Entries already stored must be preserved unchanged.
	Append(network string, entries []Entry) error
}

// Ledger is the in-memory view of one network's deployment history.
//
// Appends are buffered until Persist flushes them to the Backend. A failed
// Persist keeps the buffer so a later Persist can retry it.
type Ledger struct {
	network string
	backend Backend

	mu      sync.RWMutex
	units   map[string][]Entry
	pending []Entry
}

// Open loads network's ledger from backend.
func Open(backend Backend, network string) (*Ledger, error) {
	if backend == nil {
		return nil, errors.New("ledger backend is required")
	}
	if strings.TrimSpace(network) == "" {
		return nil, errors.New("network is required")
	}
	units, err := backend.Load(network)
	if err != nil {
		return nil, core.Storagef(err, "loading ledger for network %q", network)
	}
	if units == nil {
		units = make(map[string][]Entry)
	}
	return &Ledger{network: network, backend: backend, units: units}, nil
}

// Network returns the network this ledger belongs to.
func (l *Ledger) Network() string { return l.network }

// History returns the deployment history of unit, most-recent-first.
// A unit that was never deployed has an empty history.
func (l *Ledger) History(unit string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := l.units[unit]
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.clone()
	}
	return out
}

// Latest returns the most recent entry of unit.
func (l *Ledger) Latest(unit string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := l.units[unit]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[0].clone(), true
}

// Units returns the names of every unit with at least one entry, sorted.
func (l *Ledger) Units() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.units))
	for n, entries := range l.units {
		if len(entries) > 0 {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Append makes entry the newest entry of its unit. It is not durable until
// Persist succeeds.
func (l *Ledger) Append(entry Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid ledger entry: %w", err)
	}
	entry = entry.clone()

	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.units[entry.UnitName]
	next := make([]Entry, 0, len(prev)+1)
	next = append(next, entry)
	next = append(next, prev...)
	l.units[entry.UnitName] = next
	l.pending = append(l.pending, entry)
	return nil
}

// Pending returns the number of appended entries not yet persisted.
func (l *Ledger) Pending() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// Persist flushes pending entries to the backend.
func (l *Ledger) Persist() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil
	}
	if err := l.backend.Append(l.network, l.pending); err != nil {
		return core.Storagef(err, "persisting %d ledger entries for network %q", len(l.pending), l.network)
	}
	l.pending = nil
	return nil
}
