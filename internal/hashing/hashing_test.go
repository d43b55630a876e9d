package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantAlgo   string
		wantLength int
		wantErr    bool
	}{
		{name: "defaults", cfg: Config{}, wantAlgo: "sha256", wantLength: 10},
		{name: "blake3", cfg: Config{Algorithm: "blake3", Length: 16}, wantAlgo: "blake3", wantLength: 16},
		{name: "untruncated", cfg: Config{Length: -1}, wantAlgo: "sha256", wantLength: 0},
		{name: "unknown algorithm", cfg: Config{Algorithm: "crc32"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if h.Algorithm() != tt.wantAlgo {
				t.Errorf("Algorithm() = %q, want %q", h.Algorithm(), tt.wantAlgo)
			}
			if h.Length() != tt.wantLength {
				t.Errorf("Length() = %d, want %d", h.Length(), tt.wantLength)
			}
		})
	}
}

func TestHasher_String(t *testing.T) {
	h := Default()

	got := h.String("c1")
	want := sha256Hex("c1")[:10]
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	untruncated, _ := New(Config{Length: -1})
	if got := untruncated.String("c1"); got != sha256Hex("c1") {
		t.Errorf("untruncated String() = %q, want full digest", got)
	}
}

func TestHasher_File(t *testing.T) {
	t.Run("streams file content", func(t *testing.T) {
		content := strings.Repeat("omnia", 5000)
		path := writeFile(t, t.TempDir(), "big.bin", content)

		h, _ := New(Config{ChunkSize: 7})
		got, err := h.File(path)
		if err != nil {
			t.Fatalf("File() error = %v", err)
		}
		if got != sha256Hex(content) {
			t.Errorf("File() = %q, want %q", got, sha256Hex(content))
		}
	})

	t.Run("missing file is an i/o fault", func(t *testing.T) {
		_, err := Default().File(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, ErrIO) {
			t.Errorf("File() error = %v, want ErrIO", err)
		}
	})

	t.Run("directory read fails without partial digest", func(t *testing.T) {
		got, err := Default().File(t.TempDir())
		if !errors.Is(err, ErrIO) {
			t.Errorf("File() error = %v, want ErrIO", err)
		}
		if got != "" {
			t.Errorf("File() = %q, want empty digest on failure", got)
		}
	})
}

func TestHasher_FileIdentity(t *testing.T) {
	h := Default()
	dir := t.TempDir()

	t.Run("binds name and content", func(t *testing.T) {
		path := writeFile(t, dir, "f.bin", "X")

		got, err := h.FileIdentity(path)
		if err != nil {
			t.Fatalf("FileIdentity() error = %v", err)
		}
		want := sha256Hex(sha256Hex("f.bin") + sha256Hex("X"))[:10]
		if got != want {
			t.Errorf("FileIdentity() = %q, want %q", got, want)
		}
	})

	t.Run("same name and content in different directories collide", func(t *testing.T) {
		a := writeFile(t, t.TempDir(), "same.txt", "payload")
		b := writeFile(t, t.TempDir(), "same.txt", "payload")

		idA, _ := h.FileIdentity(a)
		idB, _ := h.FileIdentity(b)
		if idA != idB {
			t.Errorf("identities differ: %q vs %q", idA, idB)
		}
	})

	t.Run("rename changes identity", func(t *testing.T) {
		a := writeFile(t, dir, "one.txt", "payload")
		b := writeFile(t, dir, "two.txt", "payload")

		idA, _ := h.FileIdentity(a)
		idB, _ := h.FileIdentity(b)
		if idA == idB {
			t.Error("renamed file kept the same identity")
		}
	})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := h.FileIdentity(filepath.Join(dir, "nope"))
		if !errors.Is(err, ErrIO) {
			t.Errorf("FileIdentity() error = %v, want ErrIO", err)
		}
	})
}

func TestHasher_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		algo := rapid.SampledFrom([]string{"sha256", "sha1", "sha512", "md5", "blake3"}).Draw(t, "algo")
		length := rapid.IntRange(1, 32).Draw(t, "length")
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")

		h, err := New(Config{Algorithm: algo, Length: length})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		a := h.Bytes(data)
		b := h.Bytes(append([]byte(nil), data...))
		if a != b {
			t.Fatalf("Bytes() not deterministic: %q vs %q", a, b)
		}
		if len(a) != length {
			t.Fatalf("len(Bytes()) = %d, want %d", len(a), length)
		}
		if h.String(string(data)) != a {
			t.Fatal("String() and Bytes() disagree")
		}
	})
}
