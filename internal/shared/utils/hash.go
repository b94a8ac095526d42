package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashString computes the full sha256 hex digest of s.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ShortHash computes a short content hash suitable for identifying code
// snippets and deriving session ids. Not collision-proof, just compact.
func ShortHash(s string) string {
	full := HashString(s)
	return full[:12]
}
