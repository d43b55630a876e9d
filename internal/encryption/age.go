package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"omnia/internal/config"
	"omnia/internal/snapshot"
)

var (
	// ErrWrongPassphrase is returned by Unlock when the passphrase does not
	// open the sealed identity file.
	ErrWrongPassphrase = errors.New("wrong passphrase")
	// ErrWrongKey is returned by Decrypt when a snapshot was encrypted to a
	// different key pair, for example one set up on another machine.
	ErrWrongKey = errors.New("snapshot was encrypted for a different key")
)

// AgeEncryptor seals catalog snapshots to an age X25519 key pair.
//
// The recipient file holds the public key in plain text so pushes never need
// the passphrase. The identity file is itself an age file, sealed to the
// passphrase with scrypt; pulls unlock it once and keep the identity in memory.
type AgeEncryptor struct {
	recipientPath string
	identityPath  string
}

var _ snapshot.Encryptor = (*AgeEncryptor)(nil)

func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		recipientPath: cfg.PublicKeyPath,
		identityPath:  cfg.PrivateKeyPath,
	}
}

// Setup creates the key pair. It refuses to touch an existing or half-written
// pair, since snapshots already in a vault can only be read with the old identity.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	switch e.keyFiles() {
	case 2:
		return fmt.Errorf("keys already exist at %s", e.identityPath)
	case 1:
		return fmt.Errorf("incomplete key pair at %s and %s; remove it before running setup", e.recipientPath, e.identityPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	sealed, err := sealIdentity(identity, passphrase)
	if err != nil {
		return err
	}
	if err := writeKeyFile(e.identityPath, sealed, 0600); err != nil {
		return fmt.Errorf("writing identity: %w", err)
	}
	if err := writeKeyFile(e.recipientPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing recipient: %w", err)
	}
	return nil
}

func sealIdentity(identity *age.X25519Identity, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("sealing identity: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return nil, fmt.Errorf("sealing identity: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("sealing identity: %w", err)
	}
	return buf.Bytes(), nil
}

// writeKeyFile writes through a temporary file so a crash never leaves a
// truncated key behind.
func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Recipient returns the public key snapshots are encrypted to.
func (e *AgeEncryptor) Recipient() (string, error) {
	r, err := e.loadRecipient()
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// Encrypt streams a snapshot from r to w, sealed to the recipient.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.loadRecipient()
	if err != nil {
		return err
	}

	sealed, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(sealed, r); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock opens the identity file with passphrase.
func (e *AgeEncryptor) Unlock(passphrase string) (snapshot.DecryptionContext, error) {
	data, err := os.ReadFile(e.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(data), scrypt)
	if errors.Is(err, age.ErrIncorrectIdentity) {
		return nil, ErrWrongPassphrase
	}
	if err != nil {
		return nil, fmt.Errorf("opening identity: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("opening identity: %w", err)
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(plain)))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	return &AgeDecryptionContext{identity: identity}, nil
}

func (e *AgeEncryptor) IsConfigured() bool {
	return e.keyFiles() == 2
}

// keyFiles counts how many of the two key files exist.
func (e *AgeEncryptor) keyFiles() int {
	n := 0
	for _, path := range []string{e.recipientPath, e.identityPath} {
		if _, err := os.Stat(path); err == nil {
			n++
		}
	}
	return n
}

func (e *AgeEncryptor) loadRecipient() (*age.X25519Recipient, error) {
	data, err := os.ReadFile(e.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("reading recipient: %w", err)
	}
	r, err := age.ParseX25519Recipient(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing recipient %s: %w", e.recipientPath, err)
	}
	return r, nil
}

// AgeDecryptionContext holds an unlocked identity.
type AgeDecryptionContext struct {
	identity *age.X25519Identity
}

var _ snapshot.DecryptionContext = (*AgeDecryptionContext)(nil)

// Recipient returns the public key matching the unlocked identity.
func (c *AgeDecryptionContext) Recipient() string {
	return c.identity.Recipient().String()
}

// Decrypt streams a sealed snapshot from r to w.
func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	plain, err := age.Decrypt(r, c.identity)
	if errors.Is(err, age.ErrIncorrectIdentity) {
		return ErrWrongKey
	}
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	if _, err := io.Copy(w, plain); err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	return nil
}
