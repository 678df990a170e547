package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonecheck/internal/evidence"
	"phonecheck/internal/phone"
	"phonecheck/internal/scoring"
	"phonecheck/internal/verdict"
	"phonecheck/pkg/platform/sentinel"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord(number string, score int) verdict.HistoryRecord {
	n := phone.MustParse(number)
	b := evidence.Reconcile(
		evidence.NewCarrier(evidence.CarrierData{Valid: true, Carrier: "Telstra", LineType: "mobile"}),
		evidence.NewSearch(evidence.SearchData{Snippets: []string{"no reports"}}),
		evidence.NewJudgment(evidence.JudgmentData{Confidence: 0.1}),
	)
	v := verdict.NewScored(n, b, scoring.Assessment{Score: score, Label: scoring.LabelForScore(score)}, fixedNow)
	return verdict.NewHistoryRecord(v, fixedNow)
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	n := phone.MustParse("+61412345678")

	_, err := s.Get(ctx, n)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.Put(ctx, sampleRecord("+61412345678", 10)))
	require.NoError(t, s.Put(ctx, sampleRecord("+61412345678", 70)))

	got, err := s.Get(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, 70, got.Verdict.RiskScore, "overwritten on each lookup")
	assert.Equal(t, 1, s.Len())
}

func TestPutRejectsMismatchedKey(t *testing.T) {
	rec := sampleRecord("+61412345678", 10)
	rec.Number = phone.MustParse("+61412345679")

	err := NewInMemoryStore().Put(context.Background(), rec)
	assert.ErrorIs(t, err, verdict.ErrKeyMismatch)
}
