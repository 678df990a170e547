// Package carrier implements the carrier-registry source on top of the
// Twilio Lookup v2 API.
package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"phonecheck/internal/evidence"
	"phonecheck/internal/evidence/providers"
)

const (
	// SourceID identifies this source in logs and metrics.
	SourceID = "twilio"

	// DefaultBaseURL is the Twilio Lookup API host.
	DefaultBaseURL = "https://lookups.twilio.com"

	maxBodyBytes = 1 << 20
)

// Config holds Twilio credentials and transport settings.
type Config struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// Source looks numbers up in the Twilio carrier registry.
type Source struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// New creates a carrier source. Missing credentials are reported per call
// as a not_configured provider error rather than at construction.
func New(cfg Config) *Source {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Source{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    baseURL,
		httpClient: client,
	}
}

func (s *Source) ID() string          { return SourceID }
func (s *Source) Kind() evidence.Kind { return evidence.KindCarrier }

// Lookup fetches validity, carrier name and line type for the number.
func (s *Source) Lookup(ctx context.Context, q providers.Query) (evidence.Evidence, error) {
	if s.accountSID == "" || s.authToken == "" {
		return evidence.Evidence{}, providers.NewProviderError(providers.ErrorNotConfigured, SourceID, "twilio credentials not set", nil)
	}

	endpoint := fmt.Sprintf("%s/v2/PhoneNumbers/%s?Fields=line_type_intelligence",
		s.baseURL, url.PathEscape(q.Number.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return evidence.Evidence{}, providers.NewProviderError(providers.ErrorInternal, SourceID, "build request", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return evidence.Evidence{}, providers.NewProviderError(providers.ErrorTimeout, SourceID, "request timed out", err)
		}
		return evidence.Evidence{}, providers.NewProviderError(providers.ErrorProviderOutage, SourceID, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return evidence.Evidence{}, providers.NewProviderError(providers.ErrorProviderOutage, SourceID, "read body", err)
	}
	data, err := parseLookupResponse(resp.StatusCode, body)
	if err != nil {
		return evidence.Evidence{}, err
	}
	return evidence.NewCarrier(data), nil
}

type lookupResponse struct {
	PhoneNumber          string               `json:"phone_number"`
	CountryCode          string               `json:"country_code"`
	Valid                *bool                `json:"valid"`
	LineTypeIntelligence *lineTypeIntelligence `json:"line_type_intelligence"`
}

type lineTypeIntelligence struct {
	CarrierName string `json:"carrier_name"`
	Type        string `json:"type"`
}

// parseLookupResponse maps a Twilio response to carrier data. A 404 or an
// explicit valid=false is a successful answer that the number does not exist.
func parseLookupResponse(status int, body []byte) (evidence.CarrierData, error) {
	if status == http.StatusNotFound {
		return evidence.CarrierData{Valid: false}, nil
	}
	if category := providers.CategoryForStatus(status); category != "" {
		return evidence.CarrierData{}, providers.NewProviderError(category, SourceID,
			fmt.Sprintf("unexpected status %d", status), nil)
	}

	var parsed lookupResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return evidence.CarrierData{}, providers.NewProviderError(providers.ErrorBadResponse, SourceID, "decode response", err)
	}
	if parsed.Valid == nil {
		return evidence.CarrierData{}, providers.NewProviderError(providers.ErrorBadResponse, SourceID, "response missing valid flag", nil)
	}

	data := evidence.CarrierData{
		Valid:   *parsed.Valid,
		Country: parsed.CountryCode,
	}
	if parsed.LineTypeIntelligence != nil {
		data.Carrier = parsed.LineTypeIntelligence.CarrierName
		data.LineType = parsed.LineTypeIntelligence.Type
	}
	return data, nil
}
