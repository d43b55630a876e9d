package hashing

import (
	"fmt"
	"path/filepath"
)

// FileIdentity derives the unique key of a file from its name and content.
// The full digests of the base name and of the content are concatenated and
// digested again, so renaming the file or changing its content changes the
// identity while identical name and content always collide.
func (h *Hasher) FileIdentity(path string) (string, error) {
	content, err := h.FileContentIdentity(path)
	if err != nil {
		return "", err
	}
	name := h.sum([]byte(filepath.Base(path)))
	return h.String(name + content), nil
}

// FileContentIdentity returns the full-length digest of the file content.
func (h *Hasher) FileContentIdentity(path string) (string, error) {
	sum, err := h.File(path)
	if err != nil {
		return "", fmt.Errorf("computing content identity: %w", err)
	}
	return sum, nil
}

// StringIdentity returns the unique key derived from s.
func (h *Hasher) StringIdentity(s string) string {
	return h.String(s)
}
