package store

import (
	"sync"

	"github.com/asfclaim/claimerd/internal/domain"
)

// MockStore is a hand-written in-memory Store used in unit tests.
type MockStore struct {
	mu    sync.RWMutex
	codes map[domain.Code]struct{}

	// AddErr, when set, is returned by every Add call to simulate a
	// persistence failure.
	AddErr error
}

func NewMockStore(seed ...domain.Code) *MockStore {
	m := &MockStore{codes: make(map[domain.Code]struct{})}
	for _, c := range seed {
		m.codes[c] = struct{}{}
	}
	return m
}

func (m *MockStore) Contains(code domain.Code) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.codes[code]
	return ok
}

func (m *MockStore) Add(code domain.Code) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code] = struct{}{}
	return nil
}

func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.codes)
}

var _ Store = (*MockStore)(nil)
