package store

import (
	"context"
	"sync"

	"phonecheck/internal/phone"
	"phonecheck/internal/safelist"
	"phonecheck/pkg/platform/sentinel"
)

// InMemoryStore keeps safelist entries in a map.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]string)}
}

// Lookup returns the label for n or sentinel.ErrNotFound.
func (s *InMemoryStore) Lookup(_ context.Context, n phone.Number) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if label, ok := s.entries[n.String()]; ok {
		return label, nil
	}
	return "", sentinel.ErrNotFound
}

// Add upserts e.
func (s *InMemoryStore) Add(_ context.Context, e safelist.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Number.String()] = e.Label
	return nil
}

// ImportBulk upserts entries.
func (s *InMemoryStore) ImportBulk(_ context.Context, entries []safelist.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.Number.String()] = e.Label
	}
	return nil
}

// Len returns the number of entries.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
