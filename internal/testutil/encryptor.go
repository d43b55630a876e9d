package testutil

import (
	"omnia/internal/encryption"
	"omnia/internal/snapshot"
)

// NewTestEncryptor creates the deterministic header-only encryptor.
func NewTestEncryptor() snapshot.Encryptor {
	return encryption.NewTestEncryptor()
}
