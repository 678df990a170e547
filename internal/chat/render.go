// Package chat is the conversational front-end: it pulls a phone number out
// of free text, runs it through the pipeline and formats the reply.
package chat

import (
	"fmt"
	"regexp"
	"strings"

	"phonecheck/internal/analytics"
	"phonecheck/internal/phone"
	"phonecheck/internal/scoring"
	"phonecheck/internal/verdict"
)

// candidatePattern matches a run of digits with optional leading + and the
// usual separators in between.
var candidatePattern = regexp.MustCompile(`(?:\+|\b00)?\d[\d \t\-.()/]{5,}\d`)

// ExtractCandidate returns the first phone-like token in text.
func ExtractCandidate(text string) (string, bool) {
	m := candidatePattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.TrimSpace(m), true
}

const (
	StartMessage = "👋 Hello! Send me a phone number in international format (e.g. +61412345678). " +
		"I'll check if it's spam or safe."
	InvalidFormatMessage = "❌ That doesn't look like a phone number. " +
		"Send it in international format, e.g. +61412345678."
	FailureMessage = "⚠️ Something went wrong while checking that number. Please try again."
	EmptyHistory   = "📂 No history yet."
)

func labelBadge(l scoring.Label) string {
	switch l {
	case scoring.LabelLow:
		return "🟢 Low"
	case scoring.LabelMedium:
		return "🟠 Medium"
	case scoring.LabelHigh:
		return "🔴 High"
	default:
		return "⚪ Unknown"
	}
}

// Render formats a verdict view as a chat reply.
func Render(v verdict.View) string {
	var b strings.Builder
	if v.Safelisted {
		b.WriteString("✅ SAFE NUMBER\n")
		fmt.Fprintf(&b, "📞 Number: %s\n", v.Number)
		if v.SafelistLabel != "" {
			fmt.Fprintf(&b, "ℹ️ Info: %s", v.SafelistLabel)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	fmt.Fprintf(&b, "📞 Number: %s\n", v.Number)
	if v.Country != "" {
		fmt.Fprintf(&b, "🌍 Country: %s\n", v.Country)
	}
	carrier := "Unknown"
	if v.Carrier != nil && *v.Carrier != "" {
		carrier = *v.Carrier
		if v.LineType != nil && *v.LineType != "" {
			carrier += " (" + *v.LineType + ")"
		}
	}
	fmt.Fprintf(&b, "📡 Carrier: %s\n", carrier)
	if !v.IsValid {
		b.WriteString("🚫 Not a valid, assigned number\n")
	}
	fmt.Fprintf(&b, "🚦 Risk: %s\n", labelBadge(v.RiskLabel))
	fmt.Fprintf(&b, "⚖️ Risk Score: %d/100", v.RiskScore)

	if v.EvidenceSummary.KeywordHits > 0 {
		fmt.Fprintf(&b, "\n🔎 Scam reports found: %d", v.EvidenceSummary.KeywordHits)
	}
	if r := v.EvidenceSummary.AIRationale; r != "" {
		fmt.Fprintf(&b, "\n🤖 %s", r)
	}
	return b.String()
}

// RenderHistory formats recent lookups, newest first.
func RenderHistory(events []analytics.LookupEvent) string {
	if len(events) == 0 {
		return EmptyHistory
	}
	lines := []string{fmt.Sprintf("📂 Last %d Lookups:", len(events))}
	for _, ev := range events {
		status := ev.RiskLabel
		if ev.Safelisted {
			status = "✅ Safe"
		}
		if status == "" {
			status = "n/a"
		}
		entry := fmt.Sprintf("\n📞 %s", phone.Mask(ev.Number))
		if ev.Country != "" {
			entry += fmt.Sprintf("\n🌍 %s", ev.Country)
		}
		if ev.Carrier != "" {
			entry += fmt.Sprintf("\n📡 %s", ev.Carrier)
		}
		entry += fmt.Sprintf("\n🚦 Status: %s\n⚖️ Risk Score: %d", status, ev.RiskScore)
		lines = append(lines, entry)
	}
	return strings.Join(lines, "\n")
}
