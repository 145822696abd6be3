package core

import "regexp"

// ImportExtractor parses the import specifiers declared in a unit's source.
//
// Implementations must return specifiers in declaration order and must be
// pure functions of the source bytes.
type ImportExtractor interface {
	Extract(source []byte) []string
}

// ImportExtractorFunc adapts a function to ImportExtractor.
type ImportExtractorFunc func(source []byte) []string

// Extract calls f(source).
func (f ImportExtractorFunc) Extract(source []byte) []string { return f(source) }

var importPattern = regexp.MustCompile(`(?m)^\s*import\s+(?:[^;"'\n]*\bfrom\s+)?(?:"([^"\n]+)"|'([^'\n]+)')`)

// SolidityImports extracts Solidity-style import directives:
//
//	import "./A.sol";
//	import "./A.sol" as A;
//	import * as A from "./A.sol";
//	import {X, Y} from "../lib/B.sol";
//
// Imports inside comments are ignored. Duplicates are kept; the resolver
// decides how to treat them.
type SolidityImports struct{}

func (SolidityImports) Extract(source []byte) []string {
	stripped := stripComments(source)
	matches := importPattern.FindAllSubmatch(stripped, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m[1]) > 0 {
			out = append(out, string(m[1]))
		} else {
			out = append(out, string(m[2]))
		}
	}
	return out
}

// stripComments blanks out // and /* */ comments. String literals are copied
// through untouched, so comment markers inside them are not comments. Newlines
// inside block comments are kept so line-anchored matching still works.
func stripComments(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(src) && src[j] != c && src[j] != '\n' {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				j++
			}
			if j < len(src) && src[j] == c {
				j++
			}
			out = append(out, src[i:j]...)
			i = j - 1
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				out = append(out, '\n')
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i < len(src) && !(src[i] == '*' && i+1 < len(src) && src[i+1] == '/') {
				if src[i] == '\n' {
					out = append(out, '\n')
				}
				i++
			}
			i++
			out = append(out, ' ')
		default:
			out = append(out, c)
		}
	}
	return out
}
