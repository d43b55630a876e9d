package store

// To regenerate migrations/schema.sql from the migration files:
//   go generate ./internal/store

//go:generate sh -c "cd ../.. && go run ./internal/store/tools"
