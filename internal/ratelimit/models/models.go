package models

import "time"

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set when not allowed
}

// Limits configures the limiter.
type Limits struct {
	// PerIP requests per client IP within IPWindow.
	PerIP    int
	IPWindow time.Duration
	// Global requests across all clients within GlobalWindow. Zero disables it.
	Global       int
	GlobalWindow time.Duration
}

// DefaultLimits allows 100 requests per hour per IP and 1000 per second overall.
func DefaultLimits() Limits {
	return Limits{
		PerIP:        100,
		IPWindow:     time.Hour,
		Global:       1000,
		GlobalWindow: time.Second,
	}
}

// Key prefixes for bucket identifiers.
const (
	KeyPrefixIP     = "ip:"
	KeyGlobalBucket = "global"
)
