// Package testing provides test doubles for the signing package.
package testing

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory signing.Store that records writes.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	writes int

	// FailSet, when non-nil, is returned by Set and Unset.
	FailSet error
}

// NewMemoryStore creates a store pre-populated with initial.
func NewMemoryStore(initial map[string]string) *MemoryStore {
	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &MemoryStore{values: values}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSet != nil {
		return s.FailSet
	}
	s.values[key] = value
	s.writes++
	return nil
}

func (s *MemoryStore) Unset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSet != nil {
		return s.FailSet
	}
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.writes++
	}
	return nil
}

// Values returns a copy of the stored values.
func (s *MemoryStore) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Writes returns how many mutations changed the store.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
