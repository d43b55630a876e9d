// Package fs expands registration source patterns into regular files.
package fs

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"omnia/internal/catalog"
)

// OSFileMatcher expands patterns against the real filesystem.
type OSFileMatcher struct {
	ignore *IgnoreMatcher
}

var _ catalog.FileMatcher = (*OSFileMatcher)(nil)

// NewOSFileMatcher creates a matcher that skips files matching ignore
// (in addition to the built-in patterns and any .omniaignore file).
func NewOSFileMatcher(ignore []string) *OSFileMatcher {
	return &OSFileMatcher{ignore: NewIgnoreMatcher(append(append([]string{}, defaultIgnorePatterns...), ignore...))}
}

// Match expands pattern. A plain file path yields that file, a directory
// yields every regular file below it, and a glob ('*', '?', '[...]', '**')
// yields the regular files it matches. Results are absolute and sorted.
func (m *OSFileMatcher) Match(pattern string) ([]string, error) {
	abs, err := filepath.Abs(pattern)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	base, glob := doublestar.SplitPattern(filepath.ToSlash(abs))
	if glob == "" || !hasMeta(glob) {
		info, err := os.Lstat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat path: %w", err)
		}
		if info.IsDir() {
			return m.expand(abs, "**")
		}
		if err := checkRegular(abs, info.Mode()); err != nil {
			return nil, err
		}
		return []string{abs}, nil
	}
	return m.expand(filepath.FromSlash(base), glob)
}

func hasMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '{', '\\':
			return true
		}
	}
	return false
}

// expand matches glob below root, applying ignore patterns relative to root.
func (m *OSFileMatcher) expand(root, glob string) ([]string, error) {
	extra, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	ignore := m.ignore.With(extra)

	matches, err := doublestar.Glob(os.DirFS(root), glob, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil {
		return nil, fmt.Errorf("matching %s in %s: %w", glob, root, err)
	}

	var paths []string
	for _, rel := range matches {
		if ignore.Match(rel) {
			continue
		}
		full := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Lstat(full)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", full, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		paths = append(paths, full)
	}
	sort.Strings(paths)
	return paths, nil
}

// checkRegular rejects the special file types registration cannot hash.
func checkRegular(path string, mode iofs.FileMode) error {
	switch {
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", path)
	case mode&os.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", path)
	case mode&os.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", path)
	case mode&os.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", path)
	case !mode.IsRegular():
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}
