package dag

import (
	"path"
	"sort"
	"strings"

	"ledgerforge/internal/core"
)

// Node is one unit in the DependencyGraph.
type Node struct {
	Unit core.Unit

	// Deps are the resolved names of the unit's direct dependencies in
	// declaration order. A unit imported twice appears once, at its first
	// declaration.
	Deps []string

	index int
}

// Index returns the node's position in discovery order.
func (n *Node) Index() int { return n.index }

// DependencyGraph is a directed graph over unit names: an edge U -> D means U
// imports D.
//
// Every edge target is guaranteed to be a known unit. Acyclicity is NOT
// checked at construction; the Hasher rejects cycles.
//
// It is safe for concurrent read access.
type DependencyGraph struct {
	nodes  []*Node // discovery order
	byName map[string]*Node

	// dependents[i] lists the indices of nodes that import node i, ascending.
	dependents [][]int
}

// Resolve builds a DependencyGraph from units in discovery order.
//
// Each import specifier is resolved to a canonical unit name relative to the
// importing unit's directory ("./" and "../" prefixes) or to the source root
// (anything else). ext is the source extension stripped from resolved paths.
//
// Resolution is all-or-nothing: the first unresolvable import fails the whole
// graph with a *DependencyNotFoundError.
func Resolve(units []core.Unit, ext string) (*DependencyGraph, error) {
	byName := make(map[string]*Node, len(units))
	nodes := make([]*Node, 0, len(units))
	for i, u := range units {
		if u.Name == "" {
			return nil, invalidf("unit name is required (path %q)", u.Path)
		}
		if _, exists := byName[u.Name]; exists {
			return nil, invalidf("duplicate unit name: %q", u.Name)
		}
		n := &Node{Unit: u, index: i}
		byName[u.Name] = n
		nodes = append(nodes, n)
	}

	dependents := make([][]int, len(nodes))
	for _, n := range nodes {
		seen := make(map[string]struct{}, len(n.Unit.Imports))
		for _, ref := range n.Unit.Imports {
			name, ok := ResolveImport(n.Unit, ref, ext)
			if !ok {
				return nil, &DependencyNotFoundError{Unit: n.Unit.Name, Ref: ref}
			}
			dep, ok := byName[name]
			if !ok {
				return nil, &DependencyNotFoundError{Unit: n.Unit.Name, Ref: ref}
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			n.Deps = append(n.Deps, name)
			dependents[dep.index] = append(dependents[dep.index], n.index)
		}
	}
	for i := range dependents {
		sort.Ints(dependents[i])
	}

	return &DependencyGraph{nodes: nodes, byName: byName, dependents: dependents}, nil
}

// ResolveImport maps an import specifier declared in from to a unit name.
// It reports false when the specifier escapes the source root.
func ResolveImport(from core.Unit, ref, ext string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || path.IsAbs(ref) {
		return "", false
	}
	var p string
	if strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") {
		p = path.Join(from.Dir(), ref)
	} else {
		p = path.Clean(ref)
	}
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return core.UnitName(p, ext), true
}

// Len returns the number of units.
func (g *DependencyGraph) Len() int { return len(g.nodes) }

// Node returns a node by name.
func (g *DependencyGraph) Node(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Names returns unit names in discovery order.
func (g *DependencyGraph) Names() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Unit.Name
	}
	return out
}

// Units returns the units in discovery order.
func (g *DependencyGraph) Units() []core.Unit {
	out := make([]core.Unit, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Unit
	}
	return out
}

// Deps returns the direct dependencies of name in declaration order.
func (g *DependencyGraph) Deps(name string) []string {
	n, ok := g.byName[name]
	if !ok {
		return nil
	}
	out := make([]string, len(n.Deps))
	copy(out, n.Deps)
	return out
}

// Dependents returns the units that directly import name, in discovery order.
func (g *DependencyGraph) Dependents(name string) []string {
	n, ok := g.byName[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.dependents[n.index]))
	for _, idx := range g.dependents[n.index] {
		out = append(out, g.nodes[idx].Unit.Name)
	}
	return out
}

// TransitiveDependents returns every unit that depends on name directly or
// indirectly, in discovery order.
func (g *DependencyGraph) TransitiveDependents(name string) []string {
	n, ok := g.byName[name]
	if !ok {
		return nil
	}
	seen := make(map[int]struct{})
	queue := []int{n.index}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.dependents[cur] {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			queue = append(queue, d)
		}
	}
	idx := make([]int, 0, len(seen))
	for i := range seen {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = g.nodes[j].Unit.Name
	}
	return out
}
