package evidence

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileMissingSlots(t *testing.T) {
	b := Reconcile(Evidence{}, Evidence{}, Evidence{})

	for _, kind := range Kinds {
		e := b.Get(kind)
		assert.Equal(t, kind, e.Kind)
		assert.Equal(t, StatusUnavailable, e.Status)
		assert.Equal(t, ReasonMissing, e.Reason)
	}
	assert.True(t, b.AllMissing())
}

func TestReconcileShapeValidation(t *testing.T) {
	t.Run("kind mismatch becomes bad_response", func(t *testing.T) {
		b := Reconcile(NewSearch(SearchData{Snippets: []string{"x"}}), Evidence{}, Evidence{})
		assert.Equal(t, KindCarrier, b.Carrier.Kind)
		assert.Equal(t, StatusUnavailable, b.Carrier.Status)
		assert.Equal(t, ReasonBadResponse, b.Carrier.Reason)
	})

	t.Run("ok without payload becomes bad_response", func(t *testing.T) {
		b := Reconcile(
			Evidence{Kind: KindCarrier, Status: StatusOK},
			Evidence{Kind: KindSearch, Status: StatusOK},
			Evidence{Kind: KindJudgment, Status: StatusOK},
		)
		for _, e := range b.All() {
			assert.Equal(t, StatusUnavailable, e.Status, e.Kind)
			assert.Equal(t, ReasonBadResponse, e.Reason, e.Kind)
		}
	})

	t.Run("unknown status becomes bad_response", func(t *testing.T) {
		b := Reconcile(Evidence{Kind: KindCarrier, Status: "weird"}, Evidence{}, Evidence{})
		assert.Equal(t, ReasonBadResponse, b.Carrier.Reason)
	})

	t.Run("timeout is preserved with provenance", func(t *testing.T) {
		in := Timeout(KindSearch)
		in.Source = "duckduckgo"
		in.Latency = 2 * time.Second
		b := Reconcile(Evidence{}, in, Evidence{})
		assert.Equal(t, StatusTimeout, b.Search.Status)
		assert.Equal(t, "duckduckgo", b.Search.Source)
		assert.Equal(t, 2*time.Second, b.Search.Latency)
	})
}

func TestReconcileNormalizesPayloads(t *testing.T) {
	snippets := []string{"  first  result ", "", "   ", "first result"}
	for i := range 20 {
		snippets = append(snippets, fmt.Sprintf("snippet %d", i))
	}

	b := Reconcile(
		NewCarrier(CarrierData{Valid: true, Country: " au ", Carrier: " Telstra ", LineType: "mobile"}),
		NewSearch(SearchData{Snippets: snippets, Queries: 3}),
		NewJudgment(JudgmentData{Confidence: 1.7, LabelSuggestion: " High ", Rationale: "  reported often "}),
	)

	require.True(t, b.Carrier.OK())
	assert.Equal(t, "AU", b.Carrier.Carrier.Country)
	assert.Equal(t, "Telstra", b.Carrier.Carrier.Carrier)

	require.True(t, b.Search.OK())
	assert.Len(t, b.Search.Search.Snippets, MaxSnippets)
	assert.Equal(t, "first result", b.Search.Search.Snippets[0])
	assert.Equal(t, "snippet 0", b.Search.Search.Snippets[1])
	assert.Equal(t, 3, b.Search.Search.Queries)

	require.True(t, b.Judgment.OK())
	assert.InDelta(t, 1.0, b.Judgment.Judgment.Confidence, 1e-9)
	assert.Equal(t, "High", b.Judgment.Judgment.LabelSuggestion)
	assert.Equal(t, "reported often", b.Judgment.Judgment.Rationale)
	assert.False(t, b.AllMissing())
}

func TestReconcileDoesNotAliasInput(t *testing.T) {
	in := NewCarrier(CarrierData{Valid: true, Carrier: "X"})
	b := Reconcile(in, Evidence{}, Evidence{})
	b.Carrier.Carrier.Carrier = "changed"
	assert.Equal(t, "X", in.Carrier.Carrier)
}

func TestClampConfidence(t *testing.T) {
	assert.InDelta(t, 0.0, ClampConfidence(-0.3), 1e-9)
	assert.InDelta(t, 0.42, ClampConfidence(0.42), 1e-9)
	assert.InDelta(t, 1.0, ClampConfidence(3), 1e-9)
}

func TestBundleSummary(t *testing.T) {
	b := Reconcile(NewCarrier(CarrierData{Valid: true}), Timeout(KindSearch), Evidence{})
	assert.Equal(t, map[string]string{
		"carrier":  "ok",
		"search":   "timeout",
		"judgment": "unavailable",
	}, b.Summary())
}
