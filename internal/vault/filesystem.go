package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"omnia/internal/snapshot"
)

// FileSystemVault stores snapshots as files under a root directory:
//
//	<root>/
//	  <hostID>/
//	    <name>          (snapshot data)
//	    <name>.version  (version marker)
type FileSystemVault struct {
	name string
	root string
}

var _ snapshot.Vault = (*FileSystemVault)(nil)

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault root: %w", err)
	}
	return &FileSystemVault{name: name, root: root}, nil
}

func (v *FileSystemVault) itemPath(hostID, name string) string {
	return filepath.Join(v.root, hostID, name)
}

// Put stores a named item and its version marker. The data file is replaced
// atomically; the marker is written after it.
func (v *FileSystemVault) Put(_ context.Context, hostID, name string, r io.Reader, size int64, version int64) error {
	destPath := v.itemPath(hostID, name)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create host directory: %w", err)
	}
	if err := writeFileAtomic(destPath, r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	if err := os.WriteFile(destPath+".version", []byte(versionData), 0644); err != nil {
		return fmt.Errorf("writing version file: %w", err)
	}
	return nil
}

// Get writes a named item to w.
func (v *FileSystemVault) Get(_ context.Context, hostID, name string, w io.Writer) error {
	f, err := os.Open(v.itemPath(hostID, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s for host %s: %w", name, hostID, snapshot.ErrNotFound)
		}
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}

// Version returns the stored version. Returns 0 if no version file exists.
func (v *FileSystemVault) Version(_ context.Context, hostID, name string) (int64, error) {
	data, err := os.ReadFile(v.itemPath(hostID, name) + ".version")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault root is an accessible directory.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}
	return nil
}

// writeFileAtomic writes data from r to destPath via a temp file and rename.
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
