package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// hashKey returns "<kind>:<sha256 of parts>". Parts are NUL-separated so
// ("ab", "c") and ("a", "bc") never share a key.
func hashKey(kind string, parts ...string) string {
	return kind + ":" + Hash([]byte(strings.Join(parts, "\x00")))
}

// Hash returns the hex SHA-256 of data. It names cache files and fingerprints
// the manifests a metadata entry was produced from.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
