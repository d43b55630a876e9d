package testutil

import (
	"sync"

	"omnia/internal/catalog"
)

// StubMetadataComputer returns canned metadata and records which paths it saw.
type StubMetadataComputer struct {
	mu     sync.Mutex
	Result catalog.Metadata
	Err    error
	Calls  []string
}

var _ catalog.MetadataComputer = (*StubMetadataComputer)(nil)

func (s *StubMetadataComputer) Compute(path string) (catalog.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, path)
	return s.Result, s.Err
}
