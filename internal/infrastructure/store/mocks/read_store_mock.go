package mocks

import (
	"sync"

	"github.com/example/liquor-inventory/internal/infrastructure/store"
)

// MockReadStore is the in-memory read store with call recording and
// failure injection.
type MockReadStore struct {
	inner *store.ReadStore

	mu          sync.Mutex
	SetCalls    []SetCall
	DeleteCalls []string
	UpdateCalls []string

	// Err, when set, is returned by every operation
	Err error
}

// SetCall records parameters passed to Set
type SetCall struct {
	Collection string
	ID         string
	Data       any
}

func NewMockReadStore() *MockReadStore {
	return &MockReadStore{inner: store.NewReadStore()}
}

func (m *MockReadStore) fail() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

func (m *MockReadStore) Set(collection, id string, data any) error {
	m.mu.Lock()
	m.SetCalls = append(m.SetCalls, SetCall{Collection: collection, ID: id, Data: data})
	m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	return m.inner.Set(collection, id, data)
}

func (m *MockReadStore) Get(collection, id string) (any, bool, error) {
	if err := m.fail(); err != nil {
		return nil, false, err
	}
	return m.inner.Get(collection, id)
}

func (m *MockReadStore) GetAll(collection string) ([]any, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	return m.inner.GetAll(collection)
}

func (m *MockReadStore) Delete(collection, id string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	return m.inner.Delete(collection, id)
}

func (m *MockReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, id)
	m.mu.Unlock()
	if err := m.fail(); err != nil {
		return false, err
	}
	return m.inner.Update(collection, id, updateFn)
}

// SetData seeds a read model without recording a call
func (m *MockReadStore) SetData(collection, id string, data any) {
	_ = m.inner.Set(collection, id, data)
}

// GetData reads a read model without recording a call or failing
func (m *MockReadStore) GetData(collection, id string) (any, bool) {
	data, ok, _ := m.inner.Get(collection, id)
	return data, ok
}
