package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"omnia/internal/catalog"
)

// Service pushes and pulls catalog snapshots for one host.
type Service struct {
	vault     Vault
	encryptor Encryptor
	hostID    string
	logger    catalog.Logger
}

// NewService creates a snapshot service. A nil encryptor stores plain copies.
func NewService(v Vault, enc Encryptor, hostID string, logger catalog.Logger) *Service {
	if logger == nil {
		logger = catalog.NewNopLogger()
	}
	return &Service{vault: v, encryptor: enc, hostID: hostID, logger: logger}
}

// Latest reports the newest snapshot for this host. Plain and encrypted copies
// are versioned on one counter, so the higher version wins.
func (s *Service) Latest(ctx context.Context) (Info, error) {
	plain, err := s.vault.Version(ctx, s.hostID, NamePlain)
	if err != nil {
		return Info{}, fmt.Errorf("reading snapshot version: %w", err)
	}
	encrypted, err := s.vault.Version(ctx, s.hostID, NameEncrypted)
	if err != nil {
		return Info{}, fmt.Errorf("reading snapshot version: %w", err)
	}

	switch {
	case plain == 0 && encrypted == 0:
		return Info{}, fmt.Errorf("host %s: %w", s.hostID, ErrNotFound)
	case encrypted > plain:
		return Info{Name: NameEncrypted, Version: encrypted, Encrypted: true}, nil
	default:
		return Info{Name: NamePlain, Version: plain}, nil
	}
}

// nextVersion returns one past the newest stored version.
func (s *Service) nextVersion(ctx context.Context) (int64, error) {
	info, err := s.Latest(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return info.Version + 1, nil
}

// Push copies src to the vault and returns the version it was stored under.
func (s *Service) Push(ctx context.Context, src Source) (int64, error) {
	version, err := s.nextVersion(ctx)
	if err != nil {
		return 0, err
	}

	tmpDir, err := os.MkdirTemp("", "omnia-snapshot-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp dir for snapshot: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	plainPath := filepath.Join(tmpDir, NamePlain)
	if err := src.BackupTo(plainPath); err != nil {
		return 0, fmt.Errorf("backing up catalog: %w", err)
	}

	name, uploadPath := NamePlain, plainPath
	if s.encryptor != nil {
		name, uploadPath = NameEncrypted, filepath.Join(tmpDir, NameEncrypted)
		if err := s.encryptFile(plainPath, uploadPath); err != nil {
			return 0, err
		}
	}

	if err := s.upload(ctx, name, uploadPath, version); err != nil {
		return 0, err
	}
	s.logger.Info("snapshot pushed", "host", s.hostID, "name", name, "version", version)
	return version, nil
}

func (s *Service) encryptFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening snapshot for encryption: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	defer out.Close()

	if err := s.encryptor.Encrypt(in, out); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	return out.Close()
}

func (s *Service) upload(ctx context.Context, name, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	if err := s.vault.Put(ctx, s.hostID, name, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	return nil
}

// Pull writes the newest snapshot to dest, which must not exist yet.
// dec is required when the snapshot is encrypted and ignored otherwise.
func (s *Service) Pull(ctx context.Context, dest string, dec DecryptionContext) (Info, error) {
	info, err := s.Latest(ctx)
	if err != nil {
		return Info{}, err
	}
	if info.Encrypted && dec == nil {
		return Info{}, fmt.Errorf("version %d: %w", info.Version, ErrLocked)
	}

	if _, err := os.Stat(dest); err == nil {
		return Info{}, fmt.Errorf("output file already exists: %s", dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Info{}, fmt.Errorf("creating parent directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return Info{}, fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if info.Encrypted {
		err = s.getDecrypted(ctx, info.Name, f, dec)
	} else {
		err = s.vault.Get(ctx, s.hostID, info.Name, f)
	}
	if err != nil {
		f.Close()
		os.Remove(dest)
		return Info{}, fmt.Errorf("retrieving snapshot: %w", err)
	}

	s.logger.Info("snapshot pulled", "host", s.hostID, "version", info.Version, "dest", dest)
	return info, nil
}

// getDecrypted pipes vault output straight into the decryptor.
func (s *Service) getDecrypted(ctx context.Context, name string, w io.Writer, dec DecryptionContext) error {
	pr, pw := io.Pipe()
	vaultErrCh := make(chan error, 1)
	go func() {
		err := s.vault.Get(ctx, s.hostID, name, pw)
		pw.CloseWithError(err)
		vaultErrCh <- err
	}()

	decryptErr := dec.Decrypt(pr, w)
	pr.CloseWithError(decryptErr)
	vaultErr := <-vaultErrCh

	if decryptErr != nil {
		return fmt.Errorf("decrypting snapshot: %w", decryptErr)
	}
	return vaultErr
}
