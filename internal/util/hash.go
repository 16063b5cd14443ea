package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

func SHA256Hex(b []byte) string {
	x := sha256.Sum256(b)
	return hex.EncodeToString(x[:])
}

// ChunkID derives a stable chunk identifier from its case and position, so
// re-chunking the same document is idempotent.
func ChunkID(caseID string, index int) string {
	return SHA256Hex([]byte(fmt.Sprintf("%s:%d", caseID, index)))[:32]
}
