package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"omnia/internal/snapshot"
)

// MemoryVault keeps snapshots in memory. It is safe for concurrent use and
// mostly useful in tests.
type MemoryVault struct {
	name     string
	items    map[string][]byte // "hostID/name" -> data
	versions map[string]int64  // "hostID/name" -> version
	mu       sync.RWMutex
}

var _ snapshot.Vault = (*MemoryVault)(nil)

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		items:    make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func itemKey(hostID, name string) string {
	return hostID + "/" + name
}

// Put stores a named item for a host.
func (m *MemoryVault) Put(_ context.Context, hostID, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := itemKey(hostID, name)
	m.items[key] = data
	m.versions[key] = version
	return nil
}

// Get writes a named item to w.
func (m *MemoryVault) Get(_ context.Context, hostID, name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.items[itemKey(hostID, name)]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s for host %s: %w", name, hostID, snapshot.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Version returns the stored version, 0 when absent.
func (m *MemoryVault) Version(_ context.Context, hostID, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[itemKey(hostID, name)], nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}
