package dag

import (
	"fmt"

	"ledgerforge/internal/core"
)

// Hasher computes IdentityHashes over a DependencyGraph.
//
// Traversal is depth-first post-order: every dependency is fully hashed before
// its dependent. Results are memoized by unit name for the lifetime of the
// Hasher (one run), so each unit is hashed exactly once regardless of fan-in.
//
// A Hasher is not safe for concurrent use.
type Hasher struct {
	graph *DependencyGraph
	memo  map[string]core.IdentityHash
	order []string
}

// NewHasher creates a Hasher for g.
func NewHasher(g *DependencyGraph) *Hasher {
	return &Hasher{graph: g, memo: make(map[string]core.IdentityHash, g.Len())}
}

// Hash returns the IdentityHash of name, hashing transitive dependencies as
// needed.
//
// If traversal re-enters a unit that is still on the DFS stack it fails with a
// *CyclicDependencyError. Units on the cycle are never memoized.
func (h *Hasher) Hash(name string) (core.IdentityHash, error) {
	if _, ok := h.graph.Node(name); !ok {
		return "", fmt.Errorf("unknown unit %q", name)
	}
	onStack := make(map[string]int)
	var stack []string
	return h.visit(name, onStack, &stack)
}

func (h *Hasher) visit(name string, onStack map[string]int, stack *[]string) (core.IdentityHash, error) {
	if hash, ok := h.memo[name]; ok {
		return hash, nil
	}
	if pos, ok := onStack[name]; ok {
		path := make([]string, 0, len(*stack)-pos+1)
		path = append(path, (*stack)[pos:]...)
		path = append(path, name)
		return "", &CyclicDependencyError{Path: path}
	}

	node, _ := h.graph.Node(name)
	onStack[name] = len(*stack)
	*stack = append(*stack, name)

	depHashes := make([]core.IdentityHash, 0, len(node.Deps))
	for _, dep := range node.Deps {
		dh, err := h.visit(dep, onStack, stack)
		if err != nil {
			return "", err
		}
		depHashes = append(depHashes, dh)
	}

	*stack = (*stack)[:len(*stack)-1]
	delete(onStack, name)

	hash := core.ComputeIdentity(node.Unit.Source, depHashes)
	h.memo[name] = hash
	h.order = append(h.order, name)
	return hash, nil
}

// HashAll hashes every unit in discovery order.
//
// On a cycle it returns nil and the error: a partially hashed graph is never
// handed to callers.
func (h *Hasher) HashAll() (map[string]core.IdentityHash, error) {
	for _, name := range h.graph.Names() {
		if _, err := h.Hash(name); err != nil {
			return nil, err
		}
	}
	out := make(map[string]core.IdentityHash, len(h.memo))
	for k, v := range h.memo {
		out[k] = v
	}
	return out, nil
}

// Order returns unit names in the post-order they were hashed (dependencies
// before dependents).
func (h *Hasher) Order() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}
