// Package snapshot copies the catalog to a vault and back.
package snapshot

import (
	"context"
	"errors"
	"io"
)

// Vault names for stored catalog copies.
const (
	NamePlain     = "catalog.db"
	NameEncrypted = "catalog.db.age"
)

// ErrNotFound is returned (wrapped) when a vault holds no snapshot.
var ErrNotFound = errors.New("snapshot not found")

// ErrLocked is returned when an encrypted snapshot is pulled without an unlocked key.
var ErrLocked = errors.New("snapshot is encrypted")

// Vault stores versioned per-host items.
// Reads and writes stream through io.Reader/io.Writer so snapshots are never
// held in memory by the caller.
type Vault interface {
	// Put stores a named item for hostID together with its version.
	// size is the number of bytes that will be read from r.
	Put(ctx context.Context, hostID, name string, r io.Reader, size int64, version int64) error

	// Get writes the named item to w. A missing item is ErrNotFound.
	Get(ctx context.Context, hostID, name string, w io.Writer) error

	// Version returns the stored version of an item, 0 when absent.
	Version(ctx context.Context, hostID, name string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// Encryptor encrypts with a public key and unlocks the private key with a passphrase.
type Encryptor interface {
	// Setup generates a key pair and encrypts the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Source writes a self-contained copy of a catalog to destPath.
type Source interface {
	BackupTo(destPath string) error
}

// Info describes the newest snapshot in a vault.
type Info struct {
	Name      string
	Version   int64
	Encrypted bool
}
