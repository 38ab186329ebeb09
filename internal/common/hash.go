package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Digest hashes parts into a lowercase hex SHA-256. Parts are separated by a
// unit separator so ("ab", "c") and ("a", "bc") never collide.
func Digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
