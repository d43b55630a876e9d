package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the full SHA-256 digest of data as lowercase hex,
// the checksum format the default hasher stores.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
