// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-enroll/internal/database"
)

// MockKV is a mock implementation of database.KV
type MockKV struct {
	mu   sync.RWMutex
	data map[string][]byte

	// Call counters
	GetCalls int
	SetCalls int

	// Error injection
	GetError    error
	SetError    error
	DeleteError error
	CloseError  error
}

// NewMockKV creates a new mock KV store
func NewMockKV() *MockKV {
	return &MockKV{data: make(map[string][]byte)}
}

// Put stores raw bytes without going through Set (for test setup)
func (m *MockKV) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

// Raw returns the stored bytes for key and whether it exists
func (m *MockKV) Raw(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MockKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetError != nil {
		return nil, m.GetError
	}
	v, ok := m.data[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MockKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.SetError != nil {
		return m.SetError
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteError != nil {
		return m.DeleteError
	}
	delete(m.data, key)
	return nil
}

func (m *MockKV) Close() error {
	return m.CloseError
}

var _ database.KV = (*MockKV)(nil)
