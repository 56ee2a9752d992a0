// Package checksum fingerprints vault files so sync can skip unchanged ones.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// File returns the hex-encoded SHA-256 digest of a file's contents. The
// digest is stored alongside the file path and compared on the next sync.
func File(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
