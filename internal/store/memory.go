package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process KV used when no database is available and
// in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[cacheKey][]byte
	puts   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[cacheKey][]byte)}
}

// Get returns the stored value for scope/key.
func (m *MemoryStore) Get(_ context.Context, scope, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[cacheKey{scope, key}]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

// Put replaces the value for scope/key.
func (m *MemoryStore) Put(_ context.Context, scope, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[cacheKey{scope, key}] = clone(value)
	m.puts++
	return nil
}

// Delete removes scope/key.
func (m *MemoryStore) Delete(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, cacheKey{scope, key})
	return nil
}

// Puts returns how many writes the store has seen.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
