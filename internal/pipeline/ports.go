package pipeline

import (
	"context"

	"phonecheck/internal/evidence"
	"phonecheck/internal/evidence/providers"
	"phonecheck/internal/phone"
	"phonecheck/internal/verdict"
)

// SafelistReader resolves trusted numbers. Lookup returns
// sentinel.ErrNotFound when the number is not safelisted.
type SafelistReader interface {
	Lookup(ctx context.Context, n phone.Number) (string, error)
}

// HistoryStore persists the latest verdict per number. Get returns
// sentinel.ErrNotFound on a miss; Put is an upsert.
type HistoryStore interface {
	Get(ctx context.Context, n phone.Number) (*verdict.HistoryRecord, error)
	Put(ctx context.Context, rec verdict.HistoryRecord) error
}

// Fetcher gathers one kind of evidence. Fetch never fails: provider errors
// come back as unavailable or timeout evidence.
type Fetcher interface {
	ID() string
	Kind() evidence.Kind
	Fetch(ctx context.Context, q providers.Query) evidence.Evidence
}
