package providers

import (
	"errors"
	"fmt"
	"net/http"

	"phonecheck/internal/evidence"
)

// ErrorCategory classifies why a source produced no evidence. The category
// string doubles as the reason recorded on unavailable evidence.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadResponse    ErrorCategory = "bad_response"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorProviderOutage ErrorCategory = "provider_outage"
	ErrorNotFound       ErrorCategory = "not_found"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	// ErrorNotConfigured marks an optional source with no credentials.
	ErrorNotConfigured ErrorCategory = "not_configured"
	ErrorInternal      ErrorCategory = "internal"
)

// Evidence converts a failed lookup into the evidence the reconciler sees.
func (c ErrorCategory) Evidence(kind evidence.Kind) evidence.Evidence {
	if c == ErrorTimeout {
		return evidence.Timeout(kind)
	}
	return evidence.Unavailable(kind, string(c))
}

// ProviderError is a source failure tagged with its category.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s lookup failed (%s): %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s lookup failed (%s): %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
	}
}

// GetCategory returns the category of the first ProviderError in err's chain,
// or ErrorInternal for anything untagged.
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// CategoryForStatus maps an upstream HTTP status to a category.
// Non-error statuses return "".
func CategoryForStatus(status int) ErrorCategory {
	switch {
	case status < http.StatusBadRequest:
		return ""
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrorAuthentication
	case status == http.StatusNotFound:
		return ErrorNotFound
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ErrorTimeout
	case status == http.StatusTooManyRequests:
		return ErrorRateLimited
	case status >= http.StatusInternalServerError:
		return ErrorProviderOutage
	default:
		return ErrorBadResponse
	}
}
