// Package checksum fingerprints event records for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/starford/agenda/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Event returns the digest of ev's canonical JSON form. Two snapshots of the
// same record hash equal regardless of which source produced them.
func Event(ev models.Event) string {
	data, err := json.Marshal(ev)
	if err != nil {
		return ""
	}
	return Sum(data)
}
