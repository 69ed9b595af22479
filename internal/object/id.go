// Package object defines the hexadecimal identifiers shared by plans, tasks,
// comments, operations and commits, and the short-prefix resolution contract
// used to look them up.
package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ID is a lowercase hexadecimal object identifier. Operation-derived IDs are
// 64 characters (sha-256); commit hashes keep whatever length their source
// uses.
type ID string

// FullLen is the length of an operation-derived identifier.
const FullLen = sha256.Size * 2

// Parse validates and normalizes a full identifier.
func Parse(s string) (ID, error) {
	s = strings.ToLower(s)
	if len(s) < MinPrefixLen {
		return "", fmt.Errorf("id %q is shorter than %d characters", s, MinPrefixLen)
	}
	if !isHex(s) {
		return "", fmt.Errorf("id %q is not hexadecimal", s)
	}
	return ID(s), nil
}

// Derive produces an ID by hashing the given parts in order.
func Derive(parts ...[]byte) ID {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return ID(hex.EncodeToString(h.Sum(nil)))
}

func (id ID) String() string {
	return string(id)
}

// Short returns the 7-character display form.
func (id ID) Short() string {
	if len(id) <= 7 {
		return string(id)
	}
	return string(id[:7])
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return len(s) > 0
}
