// Package judgment implements the AI-judgment source on an OpenAI-compatible
// chat completion API.
package judgment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"phonecheck/internal/evidence"
	"phonecheck/internal/evidence/providers"
)

const (
	// SourceID identifies this source in logs and metrics.
	SourceID = "openai"

	// DefaultModel is used when the config leaves the model empty.
	DefaultModel = openai.GPT4oMini
)

const systemPrompt = `You assess whether a phone number is likely used for scams or unwanted calls.
You receive the number, carrier registry data and web search snippets.
Reply with a JSON object only: {"confidence": <0..1 probability the number is a scam>, "label": "Low"|"Medium"|"High", "rationale": "<one sentence>"}.
Absence of reports is weak evidence of safety, not proof.`

// Config configures the judgment source.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Source asks a chat model for a scam-likelihood judgment.
type Source struct {
	client     *openai.Client
	model      string
	configured bool
}

// New creates a judgment source.
func New(cfg Config) *Source {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Source{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		configured: cfg.APIKey != "",
	}
}

func (s *Source) ID() string          { return SourceID }
func (s *Source) Kind() evidence.Kind { return evidence.KindJudgment }

// Lookup sends the number and prior evidence to the model and parses its
// JSON answer.
func (s *Source) Lookup(ctx context.Context, q providers.Query) (evidence.Evidence, error) {
	if !s.configured {
		return evidence.Evidence{}, providers.NewProviderError(providers.ErrorNotConfigured, SourceID, "api key not set", nil)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(q)},
		},
	})
	if err != nil {
		return evidence.Evidence{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return evidence.Evidence{}, providers.NewProviderError(providers.ErrorBadResponse, SourceID, "no choices in response", nil)
	}

	data, err := parseJudgment(resp.Choices[0].Message.Content)
	if err != nil {
		return evidence.Evidence{}, err
	}
	return evidence.NewJudgment(data), nil
}

// BuildPrompt renders the user message for q.
func BuildPrompt(q providers.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Number: %s\n", q.Number.String())
	if c := q.Number.Country(); c != "" {
		fmt.Fprintf(&b, "Country (from calling code): %s\n", c)
	}
	for _, ev := range q.Prior {
		switch {
		case ev.Kind == evidence.KindCarrier && ev.OK() && ev.Carrier != nil:
			fmt.Fprintf(&b, "Carrier registry: valid=%t carrier=%q line_type=%q country=%q\n",
				ev.Carrier.Valid, ev.Carrier.Carrier, ev.Carrier.LineType, ev.Carrier.Country)
		case ev.Kind == evidence.KindSearch && ev.OK() && ev.Search != nil:
			if len(ev.Search.Snippets) == 0 {
				b.WriteString("Web search: no results\n")
				continue
			}
			b.WriteString("Web search snippets:\n")
			for _, s := range ev.Search.Snippets {
				fmt.Fprintf(&b, "- %s\n", s)
			}
		case ev.Kind == evidence.KindCarrier || ev.Kind == evidence.KindSearch:
			fmt.Fprintf(&b, "%s: unavailable\n", ev.Kind)
		}
	}
	return b.String()
}

type judgmentReply struct {
	Confidence *float64 `json:"confidence"`
	Label      string   `json:"label"`
	Rationale  string   `json:"rationale"`
}

func parseJudgment(content string) (evidence.JudgmentData, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var reply judgmentReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return evidence.JudgmentData{}, providers.NewProviderError(providers.ErrorBadResponse, SourceID, "decode judgment", err)
	}
	if reply.Confidence == nil || math.IsNaN(*reply.Confidence) {
		return evidence.JudgmentData{}, providers.NewProviderError(providers.ErrorBadResponse, SourceID, "judgment missing confidence", nil)
	}
	if c := *reply.Confidence; c < 0 || c > 1 {
		return evidence.JudgmentData{}, providers.NewProviderError(providers.ErrorBadResponse, SourceID,
			fmt.Sprintf("judgment confidence %v outside [0,1]", c), nil)
	}
	return evidence.JudgmentData{
		Confidence:      *reply.Confidence,
		LabelSuggestion: reply.Label,
		Rationale:       reply.Rationale,
	}, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewProviderError(providers.ErrorTimeout, SourceID, "request timed out", err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if category := providers.CategoryForStatus(apiErr.HTTPStatusCode); category != "" {
			return providers.NewProviderError(category, SourceID, apiErr.Message, err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if category := providers.CategoryForStatus(reqErr.HTTPStatusCode); category != "" {
			return providers.NewProviderError(category, SourceID, "request rejected", err)
		}
	}
	return providers.NewProviderError(providers.ErrorProviderOutage, SourceID, "completion failed", err)
}
