// Package sha256 derives stable content digests for staged documents.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the full hex-encoded SHA-256 digest of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortDigest returns the first n hex characters of the digest. Staged
// content names use a 16-character prefix, which keeps names readable while
// leaving collisions out of practical reach for a single run.
func ShortDigest(data []byte, n int) string {
	d := Digest(data)
	if n <= 0 || n >= len(d) {
		return d
	}
	return d[:n]
}
