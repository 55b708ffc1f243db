package state

import (
	"context"
	"sync"
)

// MemoryStore keeps all scopes in process. Used in development, the CLI and
// tests; it has no durability across restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[Scope]map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[Scope]map[string]map[string]string)}
}

func (s *MemoryStore) Read(_ context.Context, scope Scope, key Key) (string, bool, error) {
	if err := validate(scope, key.Owner); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[scope][key.Owner][key.Name]
	return v, ok, nil
}

func (s *MemoryStore) Write(_ context.Context, scope Scope, key Key, value string) error {
	if err := validate(scope, key.Owner); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	owners, ok := s.values[scope]
	if !ok {
		owners = make(map[string]map[string]string)
		s.values[scope] = owners
	}
	fields, ok := owners[key.Owner]
	if !ok {
		fields = make(map[string]string)
		owners[key.Owner] = fields
	}
	fields[key.Name] = value
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, scope Scope, owner string) error {
	if err := validate(scope, owner); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values[scope], owner)
	return nil
}
