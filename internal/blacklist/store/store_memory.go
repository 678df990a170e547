// Package store holds the blacklist backends.
package store

import (
	"context"
	"sort"
	"sync"

	"phonecheck/internal/blacklist"
	"phonecheck/internal/phone"
	"phonecheck/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]blacklist.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]blacklist.Entry)}
}

func (s *InMemoryStore) Get(_ context.Context, n phone.Number) (*blacklist.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[n.String()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (s *InMemoryStore) Put(_ context.Context, e blacklist.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Number.String()] = e
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, n phone.Number) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[n.String()]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, n.String())
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]blacklist.Entry, error) {
	s.mu.RLock()
	out := make([]blacklist.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(entries []blacklist.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Number.String() < entries[j].Number.String()
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
