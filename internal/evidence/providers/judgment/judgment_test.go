package judgment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonecheck/internal/evidence"
	"phonecheck/internal/evidence/providers"
	"phonecheck/internal/phone"
)

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = fmt.Fprintf(w, `{"error":{"message":"%s","type":"error"}}`, http.StatusText(status))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
		_, _ = w.Write(body)
	}))
}

func newTestSource(server *httptest.Server) *Source {
	return New(Config{APIKey: "sk-test", Model: "gpt-test", BaseURL: server.URL + "/v1", HTTPClient: server.Client()})
}

func testQuery() providers.Query {
	return providers.Query{
		Number: phone.MustParse("+61412345678"),
		Prior: []evidence.Evidence{
			evidence.NewCarrier(evidence.CarrierData{Valid: true, Carrier: "Telstra", LineType: "mobile"}),
			evidence.NewSearch(evidence.SearchData{Snippets: []string{"reported as scam"}}),
		},
	}
}

func TestLookupParsesJudgment(t *testing.T) {
	server := completionServer(t, http.StatusOK, `{"confidence":0.82,"label":"High","rationale":"Multiple scam reports."}`)
	defer server.Close()

	ev, err := newTestSource(server).Lookup(context.Background(), testQuery())

	require.NoError(t, err)
	require.True(t, ev.OK())
	assert.InDelta(t, 0.82, ev.Judgment.Confidence, 1e-9)
	assert.Equal(t, "High", ev.Judgment.LabelSuggestion)
	assert.Equal(t, "Multiple scam reports.", ev.Judgment.Rationale)
}

func TestLookupMalformedOutput(t *testing.T) {
	for _, content := range []string{
		"I think it's a scam",
		`{"label":"High"}`,
		"",
		`{"confidence":85,"label":"Low","rationale":"looks fine"}`,
		`{"confidence":-0.2,"label":"Low"}`,
	} {
		t.Run(content, func(t *testing.T) {
			server := completionServer(t, http.StatusOK, content)
			defer server.Close()

			_, err := newTestSource(server).Lookup(context.Background(), testQuery())
			require.Error(t, err)
			assert.Equal(t, providers.ErrorBadResponse, providers.GetCategory(err))
		})
	}
}

func TestLookupUpstreamErrors(t *testing.T) {
	tests := []struct {
		status int
		want   providers.ErrorCategory
	}{
		{status: http.StatusTooManyRequests, want: providers.ErrorRateLimited},
		{status: http.StatusUnauthorized, want: providers.ErrorAuthentication},
		{status: http.StatusInternalServerError, want: providers.ErrorProviderOutage},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := completionServer(t, tt.status, "")
			defer server.Close()

			_, err := newTestSource(server).Lookup(context.Background(), testQuery())
			require.Error(t, err)
			assert.Equal(t, tt.want, providers.GetCategory(err))
		})
	}
}

func TestLookupWithoutAPIKey(t *testing.T) {
	_, err := New(Config{}).Lookup(context.Background(), testQuery())
	assert.Equal(t, providers.ErrorNotConfigured, providers.GetCategory(err))
}

func TestBuildPrompt(t *testing.T) {
	q := testQuery()
	q.Prior = append(q.Prior, evidence.Timeout(evidence.KindSearch))

	prompt := BuildPrompt(q)

	assert.Contains(t, prompt, "Number: +61412345678")
	assert.Contains(t, prompt, "Country (from calling code): AU")
	assert.Contains(t, prompt, `carrier="Telstra"`)
	assert.Contains(t, prompt, "- reported as scam")
	assert.Contains(t, prompt, "search: unavailable")
}
