// Command tools writes the SQLite catalog schema, as produced by the embedded
// migrations, to internal/store/migrations/schema.sql for reference.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"omnia/internal/store"
	"omnia/internal/store/migrations"
)

func main() {
	db, err := store.OpenConnection(":memory:")
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrating: %v\n", err)
		os.Exit(1)
	}

	schema, err := extractSchema(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extracting schema: %v\n", err)
		os.Exit(1)
	}

	outPath := filepath.Join("internal", "store", "migrations", "schema.sql")
	if err := os.WriteFile(outPath, []byte(schema), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "writing %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", outPath)
}

// extractSchema returns the CREATE statements of every table, index and
// trigger, leaving out SQLite internals and the migration bookkeeping table.
func extractSchema(db *sql.DB) (string, error) {
	rows, err := db.Query(`
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index', 'trigger')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type WHEN 'table' THEN 1 WHEN 'index' THEN 2 ELSE 3 END,
		  name`)
	if err != nil {
		return "", fmt.Errorf("querying sqlite_master: %w", err)
	}
	defer rows.Close()

	var sb strings.Builder
	sb.WriteString("-- Generated from internal/store/migrations/files/*.sql by `go generate ./internal/store`.\n")
	sb.WriteString("-- Do not edit.\n\n")
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning row: %w", err)
		}
		sb.WriteString(stmt)
		sb.WriteString("\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading rows: %w", err)
	}
	return sb.String(), nil
}
