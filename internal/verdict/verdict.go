// Package verdict defines the pipeline result, the record persisted to
// history and the flattened view returned to clients.
package verdict

import (
	"errors"
	"time"

	"phonecheck/internal/evidence"
	"phonecheck/internal/phone"
	"phonecheck/internal/scoring"
)

// ErrKeyMismatch is returned when a history record's verdict belongs to a
// different number than its key.
var ErrKeyMismatch = errors.New("history record number does not match verdict number")

// Verdict is the outcome of one pipeline run. Treat as immutable once built.
type Verdict struct {
	Number        phone.Number      `json:"number"`
	IsValid       bool              `json:"is_valid"`
	RiskScore     int               `json:"risk_score"`
	RiskLabel     scoring.Label     `json:"risk_label"`
	Safelisted    bool              `json:"safelisted"`
	SafelistLabel string            `json:"safelist_label,omitempty"`
	Evidence      evidence.Bundle   `json:"evidence"`
	Breakdown     scoring.Breakdown `json:"breakdown"`
	ComputedAt    time.Time         `json:"computed_at"`
}

// NewSafelisted builds the short-circuit verdict for a trusted number.
func NewSafelisted(n phone.Number, label string, at time.Time) *Verdict {
	return &Verdict{
		Number:        n,
		IsValid:       true,
		RiskScore:     0,
		RiskLabel:     scoring.LabelLow,
		Safelisted:    true,
		SafelistLabel: label,
		Evidence:      evidence.Reconcile(evidence.Evidence{}, evidence.Evidence{}, evidence.Evidence{}),
		ComputedAt:    at,
	}
}

// NewScored builds a verdict from reconciled evidence and its assessment.
// Validity prefers the carrier registry answer and falls back to the calling
// code check when the registry gave no signal.
func NewScored(n phone.Number, b evidence.Bundle, a scoring.Assessment, at time.Time) *Verdict {
	valid := n.Valid()
	if b.Carrier.OK() && b.Carrier.Carrier != nil {
		valid = b.Carrier.Carrier.Valid
	}
	return &Verdict{
		Number:     n,
		IsValid:    valid,
		RiskScore:  a.Score,
		RiskLabel:  a.Label,
		Evidence:   b,
		Breakdown:  a.Breakdown,
		ComputedAt: at,
	}
}

// IsFreshAt reports whether the verdict is younger than window at now.
func (v *Verdict) IsFreshAt(now time.Time, window time.Duration) bool {
	return now.Sub(v.ComputedAt) < window
}

// HistoryRecord is the current stored verdict for a number.
type HistoryRecord struct {
	Number   phone.Number `json:"number"`
	Verdict  Verdict      `json:"verdict"`
	StoredAt time.Time    `json:"stored_at"`
}

// NewHistoryRecord pairs a verdict with its storage time.
func NewHistoryRecord(v *Verdict, storedAt time.Time) HistoryRecord {
	return HistoryRecord{Number: v.Number, Verdict: *v, StoredAt: storedAt}
}

// Validate enforces that the record's key matches its verdict.
func (r HistoryRecord) Validate() error {
	if r.Number.IsZero() || r.Number != r.Verdict.Number {
		return ErrKeyMismatch
	}
	return nil
}
