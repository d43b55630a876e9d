package catalog

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

const (
	// IDField holds the store-assigned primary key of a document.
	IDField = "_id"
	// KeyField holds the locally derived unique key of a document.
	KeyField = "uk"
)

// ErrDuplicateKey is returned (wrapped) by a DocumentStore when a write would
// give two documents of the same kind the same unique key.
var ErrDuplicateKey = errors.New("duplicate unique key")

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidField reports whether name can be used as a (dotted) document field path.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// Document is a schemaless record as exchanged with a DocumentStore.
// Values are JSON-compatible: nil, bool, json.Number, float64, string,
// []any, map[string]any. JSON fields hold their serialized text.
type Document map[string]any

// ID returns the store-assigned primary key, or "" if the document has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// UniqueKey returns the unique key carried by the document.
func (d Document) UniqueKey() string {
	key, _ := d[KeyField].(string)
	return key
}

// Lookup resolves a dotted field path.
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Predicate is an equality test on one field. When the document field holds
// an array, the predicate matches if any element equals Value. FoldCase makes
// string comparison case-insensitive.
type Predicate struct {
	Field    string
	Value    any
	FoldCase bool
}

// DocumentStore is the persistence collaborator of the catalog. Each kind is
// an independent collection of documents with a uniqueness constraint on
// KeyField and an opaque primary key assigned on insert.
type DocumentStore interface {
	// Insert stores doc and returns its new primary key.
	// Fails with ErrDuplicateKey if another document of kind has the same unique key.
	Insert(ctx context.Context, kind string, doc Document) (string, error)

	// Get returns the document with primary key id, or nil if there is none.
	Get(ctx context.Context, kind string, id string) (Document, error)

	// Replace overwrites the whole document with primary key id.
	// Fails with ErrNotFound if it does not exist and ErrDuplicateKey if the
	// new unique key belongs to another document.
	Replace(ctx context.Context, kind string, id string, doc Document) error

	// Delete removes the document with primary key id.
	// Fails with ErrNotFound if it does not exist.
	Delete(ctx context.Context, kind string, id string) error

	// Find returns the documents of kind matching every predicate.
	// With no predicates it returns every document of kind.
	Find(ctx context.Context, kind string, preds []Predicate) ([]Document, error)

	// Count returns the number of documents Find would return.
	Count(ctx context.Context, kind string, preds []Predicate) (int, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}
