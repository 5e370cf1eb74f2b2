// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package normalize canonicalizes display names before comparison.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Name trims whitespace and invisible edge characters and converts s to NFC.
// Case is preserved: names match exactly once normalized.
func Name(s string) string {
	return norm.NFC.String(strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) ||
			r == '\u200B' || // zero width space
			r == '\u200C' ||
			r == '\u200D' ||
			r == '\uFEFF' // BOM
	}))
}

// SameName reports whether a and b name the same thing.
func SameName(a, b string) bool {
	return Name(a) == Name(b)
}
