package testutil

import "omnia/internal/vault"

// NewTestVault creates a new in-memory snapshot vault.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}
