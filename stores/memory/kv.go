package memory

import (
	"context"
	"sync"
)

// kvStore is a process-local KeyValueStore.
type kvStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewKeyValueStore creates an empty in-memory key/value store.
func NewKeyValueStore() *kvStore {
	return &kvStore{values: make(map[string]string)}
}

func (s *kvStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

func (s *kvStore) Put(ctx context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range entries {
		s.values[k] = v
	}
	return nil
}

func (s *kvStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}
