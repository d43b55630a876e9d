// Package store implements catalog.DocumentStore on SQLite and MongoDB.
package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"omnia/internal/catalog"
)

// Migratable is implemented by stores with a versioned local schema.
type Migratable interface {
	CheckMigrations() error
	Migrate() error
}

// BackupSource is implemented by stores that can write a self-contained copy of themselves.
type BackupSource interface {
	BackupTo(destPath string) error
}

// NewStoreFromURI opens the store named by uri:
//
//	memory://                    private in-memory SQLite catalog, schema applied
//	sqlite:///abs/path/omnia.db  SQLite catalog file
//	/abs/path/omnia.db           same, bare path
//	mongodb://host:27017/db      MongoDB (also mongodb+srv://)
func NewStoreFromURI(ctx context.Context, uri string) (catalog.DocumentStore, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("store uri is empty")
	}

	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return NewSQLiteStore(uri)
	}

	switch scheme {
	case "memory":
		return NewMemoryStore()
	case "sqlite", "sqlite3":
		path, err := sqlitePath(rest)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(path)
	case "mongodb", "mongodb+srv":
		return NewMongoStore(ctx, uri)
	default:
		return nil, fmt.Errorf("unknown store scheme: %s", scheme)
	}
}

func sqlitePath(rest string) (string, error) {
	path, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("parsing sqlite path: %w", err)
	}
	if path == "" {
		return "", fmt.Errorf("sqlite store uri has no path")
	}
	return path, nil
}
