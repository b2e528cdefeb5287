package otp

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

var _ Store = (*memoryStore)(nil) // interface compliance check

// NewMemoryStore returns a process local Store; codes do not survive a restart.
func NewMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]Entry)}
}

func key(email, purpose string) string {
	return purpose + "|" + email
}

func (s *memoryStore) Put(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key(e.Email, e.Purpose)] = e
	return nil
}

func (s *memoryStore) Get(_ context.Context, email, purpose string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(email, purpose)]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *memoryStore) Evict(_ context.Context, email, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key(email, purpose))
	return nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	return nil
}
