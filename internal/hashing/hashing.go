package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

const (
	// DefaultAlgorithm is the digest used when none is configured.
	DefaultAlgorithm = "sha256"
	// DefaultLength is the number of hex characters kept in identity tokens.
	DefaultLength = 10
	// DefaultChunkSize is the read buffer size used when streaming files.
	DefaultChunkSize = 4096
)

// ErrIO is returned (wrapped) when a file cannot be opened or read while hashing.
var ErrIO = errors.New("i/o fault")

var algorithms = map[string]func() hash.Hash{
	"sha256": sha256.New,
	"sha1":   sha1.New,
	"sha512": sha512.New,
	"md5":    md5.New,
	"blake3": func() hash.Hash { return blake3.New() },
}

// Hasher computes deterministic digests over strings, byte slices and files.
//
// Token-producing methods (Bytes, String and the identity helpers) truncate the
// hex digest to the configured length. Checksums (Reader, File) are always
// full length. A Hasher holds no mutable state and is safe for concurrent use.
type Hasher struct {
	algorithm string
	newHash   func() hash.Hash
	length    int
	chunkSize int
}

// Config selects the digest algorithm, token length and streaming chunk size.
// Zero values fall back to the package defaults; Length < 0 disables truncation.
type Config struct {
	Algorithm string
	Length    int
	ChunkSize int
}

// New creates a Hasher from cfg.
func New(cfg Config) (*Hasher, error) {
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	newHash, ok := algorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("unknown hash algorithm: %q", algorithm)
	}

	length := cfg.Length
	switch {
	case length == 0:
		length = DefaultLength
	case length < 0:
		length = 0
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Hasher{
		algorithm: algorithm,
		newHash:   newHash,
		length:    length,
		chunkSize: chunkSize,
	}, nil
}

// Default returns a sha256 Hasher producing 10-character tokens.
func Default() *Hasher {
	h, _ := New(Config{})
	return h
}

// Algorithm returns the name of the digest algorithm.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Length returns the token length, or 0 when tokens are not truncated.
func (h *Hasher) Length() int {
	return h.length
}

// Bytes returns the token for data.
func (h *Hasher) Bytes(data []byte) string {
	return h.truncate(h.sum(data))
}

// String returns the token for the UTF-8 bytes of s.
func (h *Hasher) String(s string) string {
	return h.Bytes([]byte(s))
}

// Reader streams r through the digest in chunks and returns the full-length hex digest.
func (h *Hasher) Reader(r io.Reader) (string, error) {
	d := h.newHash()
	buf := make([]byte, h.chunkSize)
	if _, err := io.CopyBuffer(d, onlyReader{r}, buf); err != nil {
		return "", fmt.Errorf("%w: reading: %w", ErrIO, err)
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// File returns the full-length hex digest of the file content at path.
func (h *Hasher) File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening %s for hashing: %w", ErrIO, path, err)
	}
	defer f.Close()

	sum, err := h.Reader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum, nil
}

func (h *Hasher) sum(data []byte) string {
	d := h.newHash()
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil))
}

func (h *Hasher) truncate(digest string) string {
	if h.length == 0 || h.length >= len(digest) {
		return digest
	}
	return digest[:h.length]
}

// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer honours the chunk size.
type onlyReader struct {
	io.Reader
}
