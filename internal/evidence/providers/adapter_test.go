package providers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonecheck/internal/evidence"
	"phonecheck/internal/phone"
)

type stubSource struct {
	id     string
	kind   evidence.Kind
	lookup func(ctx context.Context, q Query) (evidence.Evidence, error)
}

func (s stubSource) ID() string          { return s.id }
func (s stubSource) Kind() evidence.Kind { return s.kind }
func (s stubSource) Lookup(ctx context.Context, q Query) (evidence.Evidence, error) {
	return s.lookup(ctx, q)
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []evidence.Status
}

func (r *recordingObserver) ObserveProviderFetch(_ string, status evidence.Status, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func testQuery() Query {
	return Query{Number: phone.MustParse("+61412345678")}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestAdapterFetchSuccess(t *testing.T) {
	obs := &recordingObserver{}
	src := stubSource{id: "twilio", kind: evidence.KindCarrier, lookup: func(_ context.Context, q Query) (evidence.Evidence, error) {
		assert.Equal(t, "+61412345678", q.Number.String())
		return evidence.NewCarrier(evidence.CarrierData{Valid: true, Carrier: "Telstra"}), nil
	}}

	ev := NewAdapter(src, time.Second, WithObserver(obs), WithLogger(quietLogger())).Fetch(context.Background(), testQuery())

	require.True(t, ev.OK())
	assert.Equal(t, evidence.KindCarrier, ev.Kind)
	assert.Equal(t, "twilio", ev.Source)
	assert.Equal(t, "Telstra", ev.Carrier.Carrier)
	assert.False(t, ev.CheckedAt.IsZero())
	assert.Equal(t, []evidence.Status{evidence.StatusOK}, obs.statuses)
}

func TestAdapterFetchTimeoutWhenSourceIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	src := stubSource{id: "slow", kind: evidence.KindSearch, lookup: func(_ context.Context, _ Query) (evidence.Evidence, error) {
		<-release
		return evidence.NewSearch(evidence.SearchData{}), nil
	}}

	start := time.Now()
	ev := NewAdapter(src, 20*time.Millisecond, WithLogger(quietLogger())).Fetch(context.Background(), testQuery())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, evidence.StatusTimeout, ev.Status)
	assert.Equal(t, evidence.KindSearch, ev.Kind)
	assert.Nil(t, ev.Search)
}

func TestAdapterFetchDeadlineErrorIsTimeout(t *testing.T) {
	src := stubSource{id: "ctx-aware", kind: evidence.KindSearch, lookup: func(ctx context.Context, _ Query) (evidence.Evidence, error) {
		<-ctx.Done()
		return evidence.Evidence{}, ctx.Err()
	}}

	ev := NewAdapter(src, 10*time.Millisecond, WithLogger(quietLogger())).Fetch(context.Background(), testQuery())
	assert.Equal(t, evidence.StatusTimeout, ev.Status)
}

func TestAdapterFetchCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	src := stubSource{id: "blocked", kind: evidence.KindJudgment, lookup: func(ctx context.Context, _ Query) (evidence.Evidence, error) {
		close(started)
		<-ctx.Done()
		return evidence.Evidence{}, ctx.Err()
	}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	ev := NewAdapter(src, time.Minute, WithLogger(quietLogger())).Fetch(ctx, testQuery())
	assert.Equal(t, evidence.StatusUnavailable, ev.Status)
	assert.Equal(t, evidence.ReasonCanceled, ev.Reason)
}

func TestAdapterFetchErrorCategories(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus evidence.Status
		wantReason string
	}{
		{name: "rate limited", err: NewProviderError(ErrorRateLimited, "x", "429", nil), wantStatus: evidence.StatusUnavailable, wantReason: "rate_limited"},
		{name: "outage", err: NewProviderError(ErrorProviderOutage, "x", "503", nil), wantStatus: evidence.StatusUnavailable, wantReason: "provider_outage"},
		{name: "bad response", err: NewProviderError(ErrorBadResponse, "x", "json", nil), wantStatus: evidence.StatusUnavailable, wantReason: "bad_response"},
		{name: "provider timeout", err: NewProviderError(ErrorTimeout, "x", "slow", nil), wantStatus: evidence.StatusTimeout, wantReason: "timeout"},
		{name: "plain error", err: errors.New("boom"), wantStatus: evidence.StatusUnavailable, wantReason: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := stubSource{id: "x", kind: evidence.KindCarrier, lookup: func(context.Context, Query) (evidence.Evidence, error) {
				return evidence.Evidence{}, tt.err
			}}
			ev := NewAdapter(src, time.Second, WithLogger(quietLogger())).Fetch(context.Background(), testQuery())
			assert.Equal(t, tt.wantStatus, ev.Status)
			assert.Equal(t, tt.wantReason, ev.Reason)
			assert.Equal(t, evidence.KindCarrier, ev.Kind)
		})
	}
}

func TestAdapterFetchRecoversPanic(t *testing.T) {
	src := stubSource{id: "panicky", kind: evidence.KindJudgment, lookup: func(context.Context, Query) (evidence.Evidence, error) {
		panic("nil map")
	}}

	ev := NewAdapter(src, time.Second, WithLogger(quietLogger())).Fetch(context.Background(), testQuery())
	assert.Equal(t, evidence.StatusUnavailable, ev.Status)
	assert.Equal(t, string(ErrorInternal), ev.Reason)
}

func TestAdapterFillsMissingKind(t *testing.T) {
	src := stubSource{id: "lazy", kind: evidence.KindSearch, lookup: func(context.Context, Query) (evidence.Evidence, error) {
		return evidence.Evidence{Status: evidence.StatusOK, Search: &evidence.SearchData{Snippets: []string{"a"}}}, nil
	}}

	ev := NewAdapter(src, time.Second).Fetch(context.Background(), testQuery())
	assert.Equal(t, evidence.KindSearch, ev.Kind)
}

func TestCategoryForStatus(t *testing.T) {
	assert.Equal(t, ErrorCategory(""), CategoryForStatus(200))
	assert.Equal(t, ErrorAuthentication, CategoryForStatus(401))
	assert.Equal(t, ErrorAuthentication, CategoryForStatus(403))
	assert.Equal(t, ErrorNotFound, CategoryForStatus(404))
	assert.Equal(t, ErrorRateLimited, CategoryForStatus(429))
	assert.Equal(t, ErrorProviderOutage, CategoryForStatus(502))
	assert.Equal(t, ErrorBadResponse, CategoryForStatus(422))
	assert.Equal(t, ErrorTimeout, CategoryForStatus(504))
}
