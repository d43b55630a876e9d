package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"omnia/internal/catalog"
	"omnia/internal/store/migrations"
)

const memoryPath = ":memory:"

// SQLiteStore keeps every document kind in one table, one JSON body per row.
// Unique keys are enforced by a (kind, unique_key) constraint.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ catalog.DocumentStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens the catalog at path, creating its directory if needed.
// The schema is not touched; call CheckMigrations or Migrate before use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewMemoryStore opens a private in-memory catalog with the schema applied.
func NewMemoryStore() (*SQLiteStore, error) {
	s, err := NewSQLiteStore(memoryPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenConnection opens and configures a SQLite connection.
// An in-memory database lives in a single connection, so the pool is capped at one.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path
	if path != memoryPath {
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func (s *SQLiteStore) Path() string { return s.path }

// CheckMigrations verifies the schema is current.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.Check(s.db)
}

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	return migrations.Up(s.db)
}

// BackupTo writes a consistent copy of the catalog to destPath.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up catalog: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, kind string, doc catalog.Document) (string, error) {
	key, body, err := encodeBody(doc)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, kind, unique_key, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, kind, key, body, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("inserting %s %s: %w", kind, key, catalog.ErrDuplicateKey)
		}
		return "", fmt.Errorf("inserting %s %s: %w", kind, key, err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, kind string, id string) (catalog.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE kind = ? AND id = ?`, kind, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting %s %s: %w", kind, id, err)
	}
	return decodeBody(id, body)
}

func (s *SQLiteStore) Replace(ctx context.Context, kind string, id string, doc catalog.Document) error {
	key, body, err := encodeBody(doc)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET unique_key = ?, body = ?, updated_at = ? WHERE kind = ? AND id = ?`,
		key, body, time.Now().UTC(), kind, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("replacing %s %s: %w", kind, id, catalog.ErrDuplicateKey)
		}
		return fmt.Errorf("replacing %s %s: %w", kind, id, err)
	}
	return expectOneRow(res, kind, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, kind string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, id, err)
	}
	return expectOneRow(res, kind, id)
}

func (s *SQLiteStore) Find(ctx context.Context, kind string, preds []catalog.Predicate) ([]catalog.Document, error) {
	where, args, err := whereClause(kind, preds)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM documents WHERE `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", kind, err)
	}
	defer rows.Close()

	docs := []catalog.Document{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", kind, err)
		}
		doc, err := decodeBody(id, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding %s: %w", kind, err)
	}
	return docs, nil
}

func (s *SQLiteStore) Count(ctx context.Context, kind string, preds []catalog.Predicate) (int, error) {
	where, args, err := whereClause(kind, preds)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", kind, err)
	}
	return n, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// whereClause renders predicates against the JSON body. A predicate on an
// array field matches when any element equals the value.
func whereClause(kind string, preds []catalog.Predicate) (string, []any, error) {
	conds := []string{"kind = ?"}
	args := []any{kind}

	for _, p := range preds {
		if !catalog.ValidField(p.Field) && p.Field != catalog.IDField {
			return "", nil, fmt.Errorf("%w: invalid field name %q", catalog.ErrValidation, p.Field)
		}
		value := sqlValue(p.Value)
		_, isString := value.(string)
		fold := p.FoldCase && isString

		switch {
		case p.Field == catalog.IDField:
			conds = append(conds, "id = ?")
			args = append(args, fmt.Sprint(value))
		case p.Field == catalog.KeyField:
			conds = append(conds, compare("unique_key", fold))
			args = append(args, value)
		case value == nil:
			conds = append(conds, "json_extract(body, ?) IS NULL")
			args = append(args, jsonPath(p.Field))
		default:
			path := jsonPath(p.Field)
			conds = append(conds, fmt.Sprintf(
				"(%s OR (json_type(body, ?) = 'array' AND EXISTS (SELECT 1 FROM json_each(body, ?) AS e WHERE %s)))",
				compare("json_extract(body, ?)", fold), compare("e.value", fold)))
			args = append(args, path, value, path, path, value)
		}
	}
	return strings.Join(conds, " AND "), args, nil
}

func compare(expr string, fold bool) string {
	if fold {
		return "lower(" + expr + ") = lower(?)"
	}
	return expr + " = ?"
}

func jsonPath(field string) string {
	return "$." + field
}

// sqlValue maps a predicate value to a driver value.
func sqlValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	default:
		return v
	}
}

func encodeBody(doc catalog.Document) (string, string, error) {
	key := doc.UniqueKey()
	if key == "" {
		return "", "", fmt.Errorf("%w: document has no unique key", catalog.ErrValidation)
	}
	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == catalog.IDField {
			continue
		}
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("encoding document %s: %w", key, err)
	}
	return key, string(data), nil
}

func decodeBody(id, body string) (catalog.Document, error) {
	var doc catalog.Document
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}
	doc[catalog.IDField] = id
	return doc, nil
}

func expectOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, catalog.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
