package core

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Artifact is the compiled output for one unit at one IdentityHash.
//
// Artifacts are created once by the compiler on a cache miss and are
// immutable thereafter.
type Artifact struct {
	// ABI is the interface description, kept as opaque JSON.
	ABI json.RawMessage `json:"abi"`

	// Bytecode is the binary payload.
	Bytecode Bytecode `json:"bytecode"`

	// SourceMap is optional.
	SourceMap string `json:"source_map,omitempty"`
}

// Clone returns a deep copy of the artifact.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	return &Artifact{
		ABI:       bytes.Clone(a.ABI),
		Bytecode:  bytes.Clone(a.Bytecode),
		SourceMap: a.SourceMap,
	}
}

// Bytecode is a binary payload encoded in JSON as a 0x-prefixed hex string.
type Bytecode []byte

// MarshalJSON encodes the bytecode as "0x..." hex.
func (b Bytecode) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(b))
}

// UnmarshalJSON accepts hex with or without a 0x prefix.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("bytecode must be a hex string: %w", err)
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decoding bytecode: %w", err)
	}
	*b = decoded
	return nil
}

// String returns the "0x..." hex form.
func (b Bytecode) String() string {
	return "0x" + hex.EncodeToString(b)
}
