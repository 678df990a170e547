package verdict

import (
	"time"

	"phonecheck/internal/evidence"
	"phonecheck/internal/scoring"
)

// View is the flattened verdict served to clients. Carrier and LineType are
// only present when the carrier registry answered.
type View struct {
	Number          string          `json:"number"`
	IsValid         bool            `json:"is_valid"`
	Country         string          `json:"country,omitempty"`
	Carrier         *string         `json:"carrier,omitempty"`
	LineType        *string         `json:"line_type,omitempty"`
	Safelisted      bool            `json:"safelisted"`
	SafelistLabel   string          `json:"safelist_label,omitempty"`
	RiskScore       int             `json:"risk_score"`
	RiskLabel       scoring.Label   `json:"risk_label"`
	EvidenceSummary EvidenceSummary `json:"evidence_summary"`
	ComputedAt      time.Time       `json:"computed_at"`
}

// EvidenceSummary condenses the bundle for display.
type EvidenceSummary struct {
	Statuses     map[string]string `json:"statuses"`
	Snippets     []string          `json:"snippets,omitempty"`
	KeywordHits  int               `json:"keyword_hits"`
	AIConfidence *float64          `json:"ai_confidence,omitempty"`
	AISuggestion string            `json:"ai_label_suggestion,omitempty"`
	AIRationale  string            `json:"ai_rationale,omitempty"`
}

// ToView flattens v for serialization.
func ToView(v *Verdict) View {
	view := View{
		Number:        v.Number.String(),
		IsValid:       v.IsValid,
		Country:       v.Number.Country(),
		Safelisted:    v.Safelisted,
		SafelistLabel: v.SafelistLabel,
		RiskScore:     v.RiskScore,
		RiskLabel:     v.RiskLabel,
		ComputedAt:    v.ComputedAt,
		EvidenceSummary: EvidenceSummary{
			Statuses:    v.Evidence.Summary(),
			KeywordHits: v.Breakdown.KeywordHits,
		},
	}

	if c := v.Evidence.Carrier; c.OK() && c.Carrier != nil {
		carrier := c.Carrier.Carrier
		lineType := c.Carrier.LineType
		view.Carrier = &carrier
		view.LineType = &lineType
		if c.Carrier.Country != "" {
			view.Country = c.Carrier.Country
		}
	}
	if s := v.Evidence.Search; s.OK() && s.Search != nil {
		view.EvidenceSummary.Snippets = topSnippets(s.Search.Snippets)
	}
	if j := v.Evidence.Judgment; j.OK() && j.Judgment != nil {
		conf := j.Judgment.Confidence
		view.EvidenceSummary.AIConfidence = &conf
		view.EvidenceSummary.AISuggestion = j.Judgment.LabelSuggestion
		view.EvidenceSummary.AIRationale = j.Judgment.Rationale
	}
	return view
}

const summarySnippets = 5

func topSnippets(in []string) []string {
	if len(in) > summarySnippets {
		in = in[:summarySnippets]
	}
	return append([]string(nil), in...)
}

// StatusFor returns the status of kind in the view, or "" if absent.
func (v View) StatusFor(kind evidence.Kind) string {
	return v.EvidenceSummary.Statuses[string(kind)]
}
