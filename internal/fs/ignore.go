package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFileName is read from the base directory of every expanded pattern.
const IgnoreFileName = ".omniaignore"

// defaultIgnorePatterns always apply.
var defaultIgnorePatterns = []string{IgnoreFileName, ".DS_Store"}

type ignorePattern struct {
	pattern   string
	matchPath bool // match the slash-separated relative path instead of the basename
}

// IgnoreMatcher decides which files a pattern expansion leaves out.
// Patterns without '/' match the basename; patterns with '/' match the path
// relative to the expansion root and may use '**'.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw patterns. Blank lines and '#' comments are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   strings.TrimPrefix(raw, "/"),
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// With returns a matcher holding both sets of patterns.
func (m *IgnoreMatcher) With(rawPatterns []string) *IgnoreMatcher {
	extra := NewIgnoreMatcher(rawPatterns)
	return &IgnoreMatcher{patterns: append(append([]ignorePattern{}, m.patterns...), extra.patterns...)}
}

// Match reports whether relativePath should be ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		subject := basename
		if p.matchPath {
			subject = normalized
		}
		matched, err := doublestar.Match(p.pattern, subject)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads the patterns of an ignore file, one per line.
// A missing file yields no patterns.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
