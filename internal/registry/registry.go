// Package registry holds named driver factories.
//
// Registries are explicit values built at startup and passed to whoever needs
// them. There is no package-level table and no init-time registration.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps driver names to values of type T (usually factories).
type Registry[T any] struct {
	kind string

	mu      sync.RWMutex
	entries map[string]T
}

// New creates an empty registry. kind names what is registered ("compiler",
// "chain") and appears in error messages.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, entries: make(map[string]T)}
}

// Register adds v under name. Names are unique.
func (r *Registry[T]) Register(name string, v T) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%s driver name is required", r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%s driver %q already registered", r.kind, name)
	}
	r.entries[name] = v
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry[T]) MustRegister(name string, v T) {
	if err := r.Register(name, v); err != nil {
		panic(err)
	}
}

// Lookup returns the value registered under name.
func (r *Registry[T]) Lookup(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s driver %q (registered: %s)", r.kind, name, strings.Join(r.namesLocked(), ", "))
	}
	return v, nil
}

// Names returns registered names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry[T]) namesLocked() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
