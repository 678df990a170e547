// Package analytics records lookup outcomes reported by the pipeline and
// serves the aggregates behind the stats endpoints and the bot's history.
package analytics

import (
	"context"
	"time"
)

// Outcome classifies how a lookup ended.
type Outcome string

const (
	OutcomeScored     Outcome = "scored"
	OutcomeSafelisted Outcome = "safelisted"
	OutcomeCached     Outcome = "cached"
	OutcomeInvalid    Outcome = "invalid"
	OutcomeCanceled   Outcome = "canceled"
)

// ProviderOutcome is one provider's contribution to a lookup.
type ProviderOutcome struct {
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// LookupEvent is emitted once per Analyze call.
type LookupEvent struct {
	ID         string                     `json:"id"`
	Number     string                     `json:"number,omitempty"`
	Country    string                     `json:"country,omitempty"`
	Carrier    string                     `json:"carrier,omitempty"`
	Outcome    Outcome                    `json:"outcome"`
	RiskLabel  string                     `json:"risk_label,omitempty"`
	RiskScore  int                        `json:"risk_score"`
	Safelisted bool                       `json:"safelisted"`
	Cached     bool                       `json:"cached"`
	Duration   time.Duration              `json:"duration_ns"`
	Providers  map[string]ProviderOutcome `json:"providers,omitempty"`
	Channel    string                     `json:"channel,omitempty"`
	ClientKind string                     `json:"client_kind,omitempty"`
	RequestID  string                     `json:"request_id,omitempty"`
	OccurredAt time.Time                  `json:"occurred_at"`
}

// Sink receives lookup events. Implementations must not block the caller
// for long and must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, ev LookupEvent)
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

// Record forwards ev to every non-nil sink.
func (m MultiSink) Record(ctx context.Context, ev LookupEvent) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, ev)
		}
	}
}
