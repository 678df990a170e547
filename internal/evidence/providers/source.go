// Package providers wraps external signal sources (carrier registry, web
// search, AI judgment) behind a common contract that never fails the caller.
package providers

import (
	"context"

	"phonecheck/internal/evidence"
	"phonecheck/internal/phone"
)

// Query is the input handed to every source.
type Query struct {
	Number phone.Number
	// Prior holds evidence already gathered in this run; only the judgment
	// source reads it.
	Prior []evidence.Evidence
}

// Source is the interface every external signal implements.
//
// Lookup returns evidence of the source's Kind or a *ProviderError. Sources
// should honour ctx, but the Adapter enforces the deadline regardless.
type Source interface {
	// ID returns a stable identifier used in logs and metrics (e.g. "twilio")
	ID() string

	// Kind returns which evidence slot this source fills
	Kind() evidence.Kind

	// Lookup queries the upstream for a single number
	Lookup(ctx context.Context, q Query) (evidence.Evidence, error)
}
