package core

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// IdentityHash is the deterministic identity of a unit's compiled meaning.
//
// Includes: the unit's own source text, the IdentityHash of each direct
// dependency in declaration order.
// Excludes: the unit name, file paths, timestamps, file metadata.
//
// Any change to the included components MUST produce a different IdentityHash,
// including reordering the same set of dependencies.
type IdentityHash string

// String returns the string representation of the IdentityHash.
func (h IdentityHash) String() string {
	return string(h)
}

// Short returns the first 12 characters, for display.
func (h IdentityHash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// ComputeIdentity computes hash(U) = H(U.source ++ hash(D_1) ++ ... ++ hash(D_n)).
//
// deps must be the direct dependency hashes in the order the dependencies were
// declared in source; the order is part of the identity.
//
// All components are length-prefixed to prevent ambiguity between a source
// suffix and a dependency hash.
func ComputeIdentity(source []byte, deps []IdentityHash) IdentityHash {
	h := sha256.New()
	writeField(h, source)
	for _, d := range deps {
		writeField(h, []byte(d))
	}
	return IdentityHash(hex.EncodeToString(h.Sum(nil)))
}

// writeField writes an 8-byte big-endian length prefix followed by data.
func writeField(h hash.Hash, data []byte) {
	length := uint64(len(data))
	lengthBytes := []byte{
		byte(length >> 56),
		byte(length >> 48),
		byte(length >> 40),
		byte(length >> 32),
		byte(length >> 24),
		byte(length >> 16),
		byte(length >> 8),
		byte(length),
	}
	h.Write(lengthBytes)
	h.Write(data)
}
