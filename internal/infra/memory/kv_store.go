package memory

import (
	"context"
	"sync"
)

// KeyValueStore is an in-memory implementation of app.KeyValueStore.
type KeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{
		values: make(map[string]string),
	}
}

// NewKeyValueStoreWith seeds the store, useful for tests that start from a saved slot.
func NewKeyValueStoreWith(values map[string]string) *KeyValueStore {
	s := NewKeyValueStore()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *KeyValueStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *KeyValueStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
