// Package store holds the OTP challenge backends.
package store

import (
	"context"
	"slices"
	"sync"

	"phonecheck/internal/otp"
	"phonecheck/internal/phone"
	"phonecheck/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[string]otp.Challenge
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{challenges: make(map[string]otp.Challenge)}
}

func (s *InMemoryStore) Save(_ context.Context, c otp.Challenge) error {
	c.CodeHash = slices.Clone(c.CodeHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.Number.String()] = c
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, n phone.Number) (*otp.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[n.String()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c.CodeHash = slices.Clone(c.CodeHash)
	return &c, nil
}

func (s *InMemoryStore) Delete(_ context.Context, n phone.Number) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, n.String())
	return nil
}
