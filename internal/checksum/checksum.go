// Package checksum fingerprints exported files for the manifest.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint identifies the bytes written for one output file.
type Fingerprint struct {
	Sum  string
	Size int64
}

// Of returns the hex-encoded SHA-256 digest and length of data.
func Of(data []byte) Fingerprint {
	h := sha256.Sum256(data)
	return Fingerprint{Sum: hex.EncodeToString(h[:]), Size: int64(len(data))}
}
