package stubs

import (
	"context"
	"sort"
	"sync"

	"readingflow/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
// and for running without a persistent backend
type MockDB struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	writes int
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		blobs: make(map[string][]byte),
	}
}

// Initialize does nothing for mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// Get returns a copy of the stored value
func (m *MockDB) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put stores a copy of value under key
func (m *MockDB) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.blobs[key] = stored
	m.writes++
	return nil
}

// Delete removes key if present
func (m *MockDB) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, key)
	return nil
}

// Keys returns the stored keys sorted by name
func (m *MockDB) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Writes returns how many times Put has been called
func (m *MockDB) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}
