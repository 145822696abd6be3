// Package core provides the domain models for incremental contract builds.
//
// # Design Principles
//
// All structures in this package adhere to the following constraints:
//
//  1. Identity is derived from content only (never timestamps or file metadata)
//  2. Units are discovered fresh on every run and never mutated afterwards
//  3. Persisted structures serialize deterministically
//
// # Core Types
//
// Unit: A named source item discovered under the source root.
// IdentityHash: A digest over a unit's source and its dependencies' hashes.
// Artifact: Compiled output (interface description + bytecode) for one unit.
// Cache: Durable mapping from (unit name, IdentityHash) to Artifact.
package core
