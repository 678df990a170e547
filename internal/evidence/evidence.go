// Package evidence defines the signals gathered about a phone number and the
// reconciler that shapes them into a bundle the scoring policy can trust.
package evidence

import (
	"time"
)

// MaxSnippets caps the number of web snippets kept per search evidence.
const MaxSnippets = 10

// Kind identifies which provider produced a piece of evidence.
type Kind string

const (
	KindCarrier  Kind = "carrier"
	KindSearch   Kind = "search"
	KindJudgment Kind = "judgment"
)

// Kinds lists every provider kind in pipeline order.
var Kinds = []Kind{KindCarrier, KindSearch, KindJudgment}

// Status is the outcome of a provider call.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
	StatusTimeout     Status = "timeout"
)

// Reasons attached to unavailable evidence produced outside a provider.
const (
	ReasonMissing     = "missing"
	ReasonBadResponse = "bad_response"
	ReasonCanceled    = "canceled"
)

// CarrierData is the registry answer for a number.
type CarrierData struct {
	Valid    bool   `json:"valid"`
	Country  string `json:"country,omitempty"`
	Carrier  string `json:"carrier,omitempty"`
	LineType string `json:"line_type,omitempty"`
}

// IsVoIP reports whether the line type is a virtual number.
func (c CarrierData) IsVoIP() bool {
	switch c.LineType {
	case "voip", "nonFixedVoip", "fixedVoip", "non_fixed_voip", "fixed_voip":
		return true
	}
	return false
}

// SearchData carries the text fragments found on the web.
type SearchData struct {
	Snippets []string `json:"snippets"`
	Queries  int      `json:"queries,omitempty"`
}

// JudgmentData is the AI assessment of the number.
type JudgmentData struct {
	Confidence      float64 `json:"confidence"`
	LabelSuggestion string  `json:"label_suggestion,omitempty"`
	Rationale       string  `json:"rationale,omitempty"`
}

// Evidence is one provider's contribution to a verdict. Exactly one payload
// pointer matching Kind is set when Status is ok; Unavailable and Timeout
// evidence carry no payload and mean "no signal".
type Evidence struct {
	Kind      Kind          `json:"kind"`
	Status    Status        `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Source    string        `json:"source,omitempty"`
	Latency   time.Duration `json:"latency_ns,omitempty"`
	CheckedAt time.Time     `json:"checked_at,omitzero"`

	Carrier  *CarrierData  `json:"carrier,omitempty"`
	Search   *SearchData   `json:"search,omitempty"`
	Judgment *JudgmentData `json:"judgment,omitempty"`
}

// OK reports whether the evidence carries a usable signal.
func (e Evidence) OK() bool {
	return e.Status == StatusOK
}

// IsZero returns true if no provider filled this slot.
func (e Evidence) IsZero() bool {
	return e.Kind == "" && e.Status == ""
}

// Unavailable builds no-signal evidence of the given kind.
func Unavailable(kind Kind, reason string) Evidence {
	return Evidence{Kind: kind, Status: StatusUnavailable, Reason: reason}
}

// Timeout builds no-signal evidence for a provider that missed its deadline.
func Timeout(kind Kind) Evidence {
	return Evidence{Kind: kind, Status: StatusTimeout, Reason: string(StatusTimeout)}
}

// NewCarrier builds ok carrier evidence.
func NewCarrier(data CarrierData) Evidence {
	return Evidence{Kind: KindCarrier, Status: StatusOK, Carrier: &data}
}

// NewSearch builds ok search evidence.
func NewSearch(data SearchData) Evidence {
	return Evidence{Kind: KindSearch, Status: StatusOK, Search: &data}
}

// NewJudgment builds ok judgment evidence.
func NewJudgment(data JudgmentData) Evidence {
	return Evidence{Kind: KindJudgment, Status: StatusOK, Judgment: &data}
}

// Bundle holds exactly one evidence slot per provider kind.
type Bundle struct {
	Carrier  Evidence `json:"carrier"`
	Search   Evidence `json:"search"`
	Judgment Evidence `json:"judgment"`
}

// Get returns the slot for kind.
func (b Bundle) Get(kind Kind) Evidence {
	switch kind {
	case KindCarrier:
		return b.Carrier
	case KindSearch:
		return b.Search
	case KindJudgment:
		return b.Judgment
	}
	return Evidence{}
}

// All returns the slots in pipeline order.
func (b Bundle) All() []Evidence {
	return []Evidence{b.Carrier, b.Search, b.Judgment}
}

// AllMissing reports whether no provider produced a usable signal.
func (b Bundle) AllMissing() bool {
	return !b.Carrier.OK() && !b.Search.OK() && !b.Judgment.OK()
}

// Summary maps each kind to its status string, e.g. {"carrier": "ok"}.
func (b Bundle) Summary() map[string]string {
	out := make(map[string]string, len(Kinds))
	for _, e := range b.All() {
		out[string(e.Kind)] = string(e.Status)
	}
	return out
}
