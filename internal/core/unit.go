package core

import (
	"path"
	"strings"
)

// Unit is a named, owned source artifact (a "contract" source file).
//
// Units are rebuilt on each discovery pass and must not be mutated once
// constructed.
type Unit struct {
	// Name is the logical identifier, derived from Path: the slash-separated
	// path relative to the source root without the source extension.
	Name string `json:"name" yaml:"name"`

	// Path is the slash-separated path relative to the source root.
	Path string `json:"path" yaml:"path"`

	// Source is the raw content.
	Source []byte `json:"-" yaml:"-"`

	// Imports are the import specifiers in declaration order, exactly as
	// written in Source. Resolution to unit names happens in the dag package.
	Imports []string `json:"imports,omitempty" yaml:"imports,omitempty"`
}

// Dir returns the slash-separated directory of the unit relative to the root.
// Units at the root return ".".
func (u Unit) Dir() string {
	return path.Dir(u.Path)
}

// UnitName derives the logical unit name from a slash-separated relative path.
func UnitName(relPath, ext string) string {
	p := path.Clean(relPath)
	if ext != "" {
		p = strings.TrimSuffix(p, ext)
	}
	return p
}
