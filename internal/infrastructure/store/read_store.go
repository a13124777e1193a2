package store

import (
	"sort"
	"sync"
)

// ReadStore keeps read models in process memory. It backs the in-memory
// ledger mode and tests; GetAll returns items ordered by id.
type ReadStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]any
}

func NewReadStore() *ReadStore {
	return &ReadStore{collections: make(map[string]map[string]any)}
}

func (rs *ReadStore) collection(name string) map[string]any {
	c, ok := rs.collections[name]
	if !ok {
		c = make(map[string]any)
		rs.collections[name] = c
	}
	return c
}

func (rs *ReadStore) Set(collection, id string, data any) error {
	rs.mu.Lock()
	rs.collection(collection)[id] = data
	rs.mu.Unlock()
	return nil
}

func (rs *ReadStore) Get(collection, id string) (any, bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	data, ok := rs.collections[collection][id]
	return data, ok, nil
}

func (rs *ReadStore) GetAll(collection string) ([]any, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	c := rs.collections[collection]
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]any, len(ids))
	for i, id := range ids {
		items[i] = c[id]
	}
	return items, nil
}

func (rs *ReadStore) Delete(collection, id string) error {
	rs.mu.Lock()
	delete(rs.collections[collection], id)
	rs.mu.Unlock()
	return nil
}

// Update replaces the stored model with updateFn's result. It reports false,
// without calling updateFn, when there is nothing stored under id.
func (rs *ReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	c := rs.collections[collection]
	current, ok := c[id]
	if !ok {
		return false, nil
	}
	c[id] = updateFn(current)
	return true, nil
}
