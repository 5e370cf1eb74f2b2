// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package id64 handles the 64-bit element identifiers used by iModels.
// Identifiers travel as lower-case hex strings with a 0x prefix ("0x20000000a1").
package id64

import (
	"strconv"
	"strings"
)

// ID is a hex-encoded 64-bit element identifier.
type ID string

// Invalid is the identifier the backend returns when no element is set.
const Invalid ID = "0"

// IsValid reports whether id denotes an actual element: non-empty, well-formed
// hex and not zero.
func IsValid(id ID) bool {
	v, ok := parse(id)
	return ok && v != 0
}

// FromUint64 encodes v in the canonical wire form.
func FromUint64(v uint64) ID {
	if v == 0 {
		return Invalid
	}
	return ID("0x" + strconv.FormatUint(v, 16))
}

// Uint64 decodes id; ok is false for malformed input.
func (id ID) Uint64() (uint64, bool) {
	return parse(id)
}

func (id ID) String() string { return string(id) }

func parse(id ID) (uint64, bool) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return 0, false
	}
	if s == "0" {
		return 0, true
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
