package archive

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"sync"

	"jch-go/internal/history"
)

// MemoryVault keeps archived objects in memory. Safe for concurrent use.
type MemoryVault struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ history.Vault = (*MemoryVault)(nil)

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{objects: make(map[string][]byte)}
}

func (m *MemoryVault) PutObject(key string, r io.Reader, size int64) error {
	if err := checkKey(key); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MemoryVault) GetObject(key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: archived object %s", history.ErrNotFound, key)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

func (m *MemoryVault) ValidateSetup() error { return nil }

// Keys returns the stored keys in sorted order.
func (m *MemoryVault) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
