// Package checksum fingerprints project files for change tracking. The
// history sync compares these digests against the last recorded build to
// decide which fragments changed.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum digests data with SHA-256 and returns the lowercase hex form, the
// representation stored in the build history.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
