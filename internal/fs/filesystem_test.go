package fs

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// makeTree creates files (slash-separated, relative to the returned root).
func makeTree(t *testing.T, files ...string) string {
	t.Helper()

	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(f), 0o644); err != nil {
			t.Fatalf("writing %s: %v", f, err)
		}
	}
	return root
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()

	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("filepath.Rel() error = %v", err)
		}
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestOSFileMatcher_Match(t *testing.T) {
	root := makeTree(t,
		"a.vcf",
		"b.txt",
		"sub/c.vcf",
		"sub/deep/d.vcf",
		"scratch/e.vcf",
		".omniaignore",
	)
	if err := os.WriteFile(filepath.Join(root, ".omniaignore"), []byte("scratch/**\n"), 0o644); err != nil {
		t.Fatalf("writing ignore file: %v", err)
	}

	tests := []struct {
		name    string
		ignore  []string
		pattern string
		want    []string
	}{
		{name: "single file", pattern: filepath.Join(root, "b.txt"), want: []string{"b.txt"}},
		{name: "top-level glob", pattern: filepath.Join(root, "*.vcf"), want: []string{"a.vcf"}},
		{name: "recursive glob honours ignore file", pattern: filepath.Join(root, "**", "*.vcf"), want: []string{"a.vcf", "sub/c.vcf", "sub/deep/d.vcf"}},
		{name: "directory expands recursively", pattern: filepath.Join(root, "sub"), want: []string{"sub/c.vcf", "sub/deep/d.vcf"}},
		{name: "configured ignore", ignore: []string{"deep/**"}, pattern: filepath.Join(root, "sub"), want: []string{"sub/c.vcf"}},
		{name: "no match", pattern: filepath.Join(root, "*.bam"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewOSFileMatcher(tt.ignore)
			got, err := m.Match(tt.pattern)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if gotRel := rel(t, root, got); !slices.Equal(gotRel, tt.want) {
				t.Errorf("Match() = %v, want %v", gotRel, tt.want)
			}
		})
	}

	t.Run("missing path", func(t *testing.T) {
		if _, err := NewOSFileMatcher(nil).Match(filepath.Join(root, "absent.vcf")); err == nil {
			t.Error("Match() expected error for missing path")
		}
	})

	t.Run("symlink rejected", func(t *testing.T) {
		link := filepath.Join(t.TempDir(), "link.vcf")
		if err := os.Symlink(filepath.Join(root, "a.vcf"), link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		if _, err := NewOSFileMatcher(nil).Match(link); err == nil {
			t.Error("Match() expected error for symlink")
		}
	})
}
