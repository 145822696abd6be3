// Package dag resolves unit imports into a dependency graph and computes
// per-unit IdentityHashes over it.
//
// It has two parts:
//   - Graph construction (Resolve): all-or-nothing reference resolution
//   - Identity computation (Hasher): post-order DFS, memoized per run, cycle-checked
//
// Dependency order is the order imports were declared in source. It is part of
// every unit's identity and is never canonicalized.
package dag
