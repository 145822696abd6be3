package ledger

import "sync"

// MemoryStore implements Backend in memory.
// Useful for testing and dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	networks map[string]map[string][]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{networks: make(map[string]map[string][]Entry)}
}

func (s *MemoryStore) Load(network string) (map[string][]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]Entry)
	for unit, entries := range s.networks[network] {
		cp := make([]Entry, len(entries))
		for i, e := range entries {
			cp[i] = e.clone()
		}
		out[unit] = cp
	}
	return out, nil
}

func (s *MemoryStore) Append(network string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	units := s.networks[network]
	if units == nil {
		units = make(map[string][]Entry)
		s.networks[network] = units
	}
	for _, e := range entries {
		units[e.UnitName] = append([]Entry{e.clone()}, units[e.UnitName]...)
	}
	return nil
}
