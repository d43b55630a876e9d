// Package metadata derives checksum, size and MIME type of registered files.
package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"omnia/internal/catalog"
	"omnia/internal/hashing"
)

var (
	// ErrNotFound marks a path that does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrUnreadable marks a file that exists but cannot be read.
	ErrUnreadable = errors.New("file unreadable")
	// ErrTypeUndetermined marks a file whose MIME type cannot be determined.
	ErrTypeUndetermined = errors.New("mime type undetermined")
)

// Computer computes file metadata with the catalog's hasher, so checksums
// use the configured algorithm at full length.
type Computer struct {
	hasher *hashing.Hasher
}

var _ catalog.MetadataComputer = (*Computer)(nil)

func NewComputer(h *hashing.Hasher) *Computer {
	if h == nil {
		h = hashing.Default()
	}
	return &Computer{hasher: h}
}

// Compute returns the metadata of the regular file at path.
func (c *Computer) Compute(path string) (catalog.Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return catalog.Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return catalog.Metadata{}, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	if !info.Mode().IsRegular() {
		return catalog.Metadata{}, fmt.Errorf("%w: %s is not a regular file", ErrUnreadable, path)
	}

	checksum, err := c.hasher.File(path)
	if err != nil {
		return catalog.Metadata{}, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	mimeType, err := DetectMimeType(path)
	if err != nil {
		return catalog.Metadata{}, err
	}

	return catalog.Metadata{
		Checksum: checksum,
		Size:     info.Size(),
		MimeType: mimeType,
	}, nil
}

// DetectMimeType guesses from the file extension first and falls back to
// sniffing the content. Parameters such as charset are dropped.
func DetectMimeType(path string) (string, error) {
	if t := stripParams(mime.TypeByExtension(filepath.Ext(path))); t != "" {
		return t, nil
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("%w: sniffing %s: %v", ErrUnreadable, path, err)
	}
	if t := stripParams(detected.String()); t != "" {
		return t, nil
	}
	return "", fmt.Errorf("%w: %s", ErrTypeUndetermined, path)
}

func stripParams(mediaType string) string {
	t, _, _ := strings.Cut(mediaType, ";")
	return strings.TrimSpace(t)
}
