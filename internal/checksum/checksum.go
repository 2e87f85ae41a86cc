// Package checksum computes the content hashes used for change detection and
// optimistic concurrency on stored plots.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/starford/arbor/internal/document"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Document returns the digest of obj's canonical JSON encoding, so two
// documents with equal content hash equally regardless of key order.
func Document(obj document.Object) (string, error) {
	data, err := document.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("checksum: marshal: %w", err)
	}
	return Sum(data), nil
}
