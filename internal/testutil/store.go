package testutil

import (
	"testing"

	"omnia/internal/catalog"
	"omnia/internal/fs"
	"omnia/internal/hashing"
	"omnia/internal/metadata"
	"omnia/internal/store"
)

// NewTestStore opens an in-memory catalog with the schema applied.
// It is closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewMemoryStore()
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestService bundles a catalog service with the stubs behind it.
type TestService struct {
	*catalog.Service
	Store *store.SQLiteStore
	Clock *StubClock
	IDs   *StubIDGenerator
}

// NewTestService wires a catalog over a fresh in-memory store with the real
// metadata computer and file matcher, a fixed clock and host "test-host".
func NewTestService(t *testing.T) *TestService {
	t.Helper()

	s := NewTestStore(t)
	clock := FixedClock()
	ids := NewStubIDGenerator()
	hasher := hashing.Default()
	svc := catalog.NewService(s, hasher, metadata.NewComputer(hasher), fs.NewOSFileMatcher(nil),
		catalog.NewNopLogger(), clock, ids, "test-host")

	return &TestService{Service: svc, Store: s, Clock: clock, IDs: ids}
}
