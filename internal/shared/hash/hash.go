// Package hash provides content digests for compiled module artifacts.
package hash

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HexSize is the length of a hex encoded digest.
const HexSize = sha256.Size * 2

// Hasher computes hex SHA256 digests.
type Hasher struct{}

// Default returns the artifact hasher.
func Default() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString is Hash for text.
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// Verify reports whether digest matches data.
func (h *Hasher) Verify(data []byte, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(h.Hash(data)), []byte(digest)) == 1
}
