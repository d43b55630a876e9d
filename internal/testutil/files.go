package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates dir/name (and any parent directories) holding content
// and returns its path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// Unreadable creates a file that cannot be opened and returns its path.
// The test is skipped when running as root, which ignores permissions.
func Unreadable(t *testing.T, dir, name string) string {
	t.Helper()

	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	path := WriteFile(t, dir, name, "secret")
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
	t.Cleanup(func() { os.Chmod(path, 0o644) })
	return path
}
