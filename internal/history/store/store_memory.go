package store

import (
	"context"
	"sync"

	"phonecheck/internal/phone"
	"phonecheck/internal/verdict"
	"phonecheck/pkg/platform/sentinel"
)

// InMemoryStore keeps one record per number in a map.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]verdict.HistoryRecord
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]verdict.HistoryRecord)}
}

// Get returns the current record for n or sentinel.ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, n phone.Number) (*verdict.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[n.String()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

// Put overwrites the record for rec.Number.
func (s *InMemoryStore) Put(_ context.Context, rec verdict.HistoryRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Number.String()] = rec
	return nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
