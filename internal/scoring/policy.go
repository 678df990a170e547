// Package scoring turns an evidence bundle into a risk score and label.
//
// This is pure domain logic - no I/O, no side effects. The policy receives
// all data it needs as arguments and returns an assessment.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"phonecheck/internal/evidence"
	strutil "phonecheck/pkg/platform/strings"
)

// Label is the categorical risk verdict.
type Label string

const (
	LabelLow     Label = "Low"
	LabelMedium  Label = "Medium"
	LabelHigh    Label = "High"
	LabelUnknown Label = "Unknown"
)

const (
	// NeutralScore is what an Unavailable or Timeout component contributes.
	NeutralScore = 50.0

	// Label thresholds (inclusive lower bounds).
	mediumThreshold = 25
	highThreshold   = 60

	carrierVoIPScore    = 60.0
	carrierUnknownScore = 100.0
)

// Weights controls the relative contribution of each component.
type Weights struct {
	Judgment float64 `json:"judgment" mapstructure:"judgment"`
	Keywords float64 `json:"keywords" mapstructure:"keywords"`
	Carrier  float64 `json:"carrier" mapstructure:"carrier"`
}

// DefaultWeights is the 0.6/0.3/0.1 split.
func DefaultWeights() Weights {
	return Weights{Judgment: 0.6, Keywords: 0.3, Carrier: 0.1}
}

// ErrInvalidWeights is returned when weights are negative or sum to zero.
var ErrInvalidWeights = errors.New("scoring weights must be non-negative with a positive sum")

// Validate checks that the weights can produce a score.
func (w Weights) Validate() error {
	if w.Judgment < 0 || w.Keywords < 0 || w.Carrier < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidWeights, w)
	}
	if w.Judgment+w.Keywords+w.Carrier <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidWeights, w)
	}
	return nil
}

// Component is one weighted input to the score.
type Component struct {
	Score   float64 `json:"score"`
	Weight  float64 `json:"weight"`
	Neutral bool    `json:"neutral,omitempty"`
}

// Breakdown explains how a score was reached.
type Breakdown struct {
	Judgment       Component `json:"judgment"`
	Keywords       Component `json:"keywords"`
	Carrier        Component `json:"carrier"`
	KeywordHits    int       `json:"keyword_hits"`
	InvalidCarrier bool      `json:"invalid_carrier,omitempty"`
}

// Assessment is the policy output.
type Assessment struct {
	Score     int       `json:"risk_score"`
	Label     Label     `json:"risk_label"`
	Breakdown Breakdown `json:"breakdown"`
}

// Policy scores evidence bundles. The zero value is not usable; use New.
type Policy struct {
	weights Weights
	terms   []string
}

// Option configures a Policy.
type Option func(*Policy)

// WithTerms replaces the scam-indicating keyword list. Terms are matched
// case-insensitively; an empty list keeps the defaults.
func WithTerms(terms []string) Option {
	return func(p *Policy) {
		if cleaned := strutil.Normalize(terms, strings.ToLower); len(cleaned) > 0 {
			p.terms = cleaned
		}
	}
}

// New creates a policy. Invalid weights fall back to DefaultWeights; callers
// that need to reject bad configuration should call Weights.Validate first.
func New(weights Weights, opts ...Option) *Policy {
	if weights.Validate() != nil {
		weights = DefaultWeights()
	}
	p := &Policy{weights: weights, terms: DefaultTerms}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Weights returns the configured weights.
func (p *Policy) Weights() Weights {
	return p.weights
}

// Score applies the policy in priority order:
//  1. Invalid number per carrier registry (hard High)
//  2. Weighted mean of judgment, keyword and carrier components
//  3. Missing components contribute the neutral midpoint
//  4. Label from thresholds, Unknown when no provider produced a signal
func (p *Policy) Score(b evidence.Bundle) Assessment {
	// Rule 1: Invalid number per carrier registry
	if b.Carrier.OK() && b.Carrier.Carrier != nil && !b.Carrier.Carrier.Valid {
		return Assessment{
			Score: 100,
			Label: LabelHigh,
			Breakdown: Breakdown{
				Carrier:        Component{Score: 100, Weight: p.weights.Carrier},
				InvalidCarrier: true,
			},
		}
	}

	// Rules 2-3: Weighted components, neutral when missing
	bd := Breakdown{
		Judgment: p.judgmentComponent(b.Judgment),
		Carrier:  p.carrierComponent(b.Carrier),
	}
	bd.Keywords, bd.KeywordHits = p.keywordComponent(b.Search)

	total := bd.Judgment.Weight + bd.Keywords.Weight + bd.Carrier.Weight
	weighted := bd.Judgment.Score*bd.Judgment.Weight +
		bd.Keywords.Score*bd.Keywords.Weight +
		bd.Carrier.Score*bd.Carrier.Weight
	score := clampScore(int(math.Round(weighted / total)))

	// Rule 4: Label
	label := LabelForScore(score)
	if b.AllMissing() {
		label = LabelUnknown
	}
	return Assessment{Score: score, Label: label, Breakdown: bd}
}

func (p *Policy) judgmentComponent(e evidence.Evidence) Component {
	if !e.OK() || e.Judgment == nil {
		return Component{Score: NeutralScore, Weight: p.weights.Judgment, Neutral: true}
	}
	return Component{
		Score:  evidence.ClampConfidence(e.Judgment.Confidence) * 100,
		Weight: p.weights.Judgment,
	}
}

func (p *Policy) keywordComponent(e evidence.Evidence) (Component, int) {
	if !e.OK() || e.Search == nil {
		return Component{Score: NeutralScore, Weight: p.weights.Keywords, Neutral: true}, 0
	}
	hits := CountHits(e.Search.Snippets, p.terms)
	return Component{Score: math.Min(100, float64(hits*hitScore)), Weight: p.weights.Keywords}, hits
}

func (p *Policy) carrierComponent(e evidence.Evidence) Component {
	if !e.OK() || e.Carrier == nil {
		return Component{Score: NeutralScore, Weight: p.weights.Carrier, Neutral: true}
	}
	switch {
	case e.Carrier.Carrier == "":
		return Component{Score: carrierUnknownScore, Weight: p.weights.Carrier}
	case e.Carrier.IsVoIP():
		return Component{Score: carrierVoIPScore, Weight: p.weights.Carrier}
	default:
		return Component{Score: 0, Weight: p.weights.Carrier}
	}
}

// LabelForScore maps a score to Low, Medium or High. Scores of 90 and above
// stay High.
func LabelForScore(score int) Label {
	switch {
	case score >= highThreshold:
		return LabelHigh
	case score >= mediumThreshold:
		return LabelMedium
	default:
		return LabelLow
	}
}

func clampScore(s int) int {
	return max(0, min(100, s))
}
