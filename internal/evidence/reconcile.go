package evidence

import (
	"math"
	"strings"

	strutil "phonecheck/pkg/platform/strings"
)

// Reconcile validates and normalizes one evidence per kind into a Bundle.
// It is pure: malformed slots are downgraded to Unavailable, never dropped.
func Reconcile(carrier, search, judgment Evidence) Bundle {
	return Bundle{
		Carrier:  reconcileSlot(KindCarrier, carrier),
		Search:   reconcileSlot(KindSearch, search),
		Judgment: reconcileSlot(KindJudgment, judgment),
	}
}

func reconcileSlot(kind Kind, e Evidence) Evidence {
	if e.IsZero() {
		return Unavailable(kind, ReasonMissing)
	}
	if e.Kind != kind {
		return stamp(Unavailable(kind, ReasonBadResponse), e)
	}

	switch e.Status {
	case StatusOK:
	case StatusTimeout:
		return stamp(Timeout(kind), e)
	case StatusUnavailable:
		out := stamp(Unavailable(kind, e.Reason), e)
		if out.Reason == "" {
			out.Reason = ReasonMissing
		}
		return out
	default:
		return stamp(Unavailable(kind, ReasonBadResponse), e)
	}

	switch kind {
	case KindCarrier:
		if e.Carrier == nil {
			return stamp(Unavailable(kind, ReasonBadResponse), e)
		}
		data := *e.Carrier
		data.Carrier = strings.TrimSpace(data.Carrier)
		data.Country = strings.ToUpper(strings.TrimSpace(data.Country))
		data.LineType = strings.TrimSpace(data.LineType)
		return stamp(NewCarrier(data), e)
	case KindSearch:
		if e.Search == nil {
			return stamp(Unavailable(kind, ReasonBadResponse), e)
		}
		data := SearchData{Snippets: NormalizeSnippets(e.Search.Snippets), Queries: e.Search.Queries}
		return stamp(NewSearch(data), e)
	case KindJudgment:
		if e.Judgment == nil || math.IsNaN(e.Judgment.Confidence) {
			return stamp(Unavailable(kind, ReasonBadResponse), e)
		}
		data := JudgmentData{
			Confidence:      ClampConfidence(e.Judgment.Confidence),
			LabelSuggestion: strings.TrimSpace(e.Judgment.LabelSuggestion),
			Rationale:       strings.TrimSpace(e.Judgment.Rationale),
		}
		return stamp(NewJudgment(data), e)
	}
	return Unavailable(kind, ReasonBadResponse)
}

// stamp copies provenance from the source evidence.
func stamp(out, src Evidence) Evidence {
	out.Source = src.Source
	out.Latency = src.Latency
	out.CheckedAt = src.CheckedAt
	return out
}

// NormalizeSnippets trims whitespace, drops empty and duplicate entries and
// clips the result to MaxSnippets.
func NormalizeSnippets(in []string) []string {
	out := strutil.Normalize(in, strutil.CollapseSpace)
	if out == nil {
		return []string{}
	}
	if len(out) > MaxSnippets {
		out = out[:MaxSnippets]
	}
	return out
}

// ClampConfidence bounds c to [0, 1].
func ClampConfidence(c float64) float64 {
	return math.Max(0, math.Min(1, c))
}
