// Package api exposes the lookup pipeline and its supporting services over
// HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"phonecheck/internal/analytics"
	"phonecheck/internal/blacklist"
	"phonecheck/internal/otp"
	"phonecheck/internal/phone"
	"phonecheck/internal/safelist"
	"phonecheck/internal/verdict"
	dErrors "phonecheck/pkg/domain-errors"
	"phonecheck/pkg/platform/httputil"
	"phonecheck/pkg/platform/sentinel"
	"phonecheck/pkg/requestcontext"
)

const (
	defaultStatsHours = 24
	maxStatsHours     = 24 * 30
)

type Analyzer interface {
	Analyze(ctx context.Context, raw string) (*verdict.Verdict, error)
}

type SafelistService interface {
	LookupRaw(ctx context.Context, raw string) (safelist.Entry, error)
	Add(ctx context.Context, raw, label string) (safelist.Entry, error)
}

type BlacklistService interface {
	Add(ctx context.Context, raw, reason, addedBy string) (*blacklist.Entry, error)
	Check(ctx context.Context, raw string) (*blacklist.Entry, error)
	Remove(ctx context.Context, raw string) error
	List(ctx context.Context) ([]blacklist.Entry, error)
}

type OTPService interface {
	Send(ctx context.Context, raw, template string) (*otp.SendResult, error)
	Verify(ctx context.Context, raw, code string) (*otp.VerifyResult, error)
}

// StatsReader serves aggregates over recent lookups.
type StatsReader interface {
	Summary(hours int) analytics.Summary
	Performance() analytics.Performance
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Services groups what the handlers delegate to.
type Services struct {
	Analyzer  Analyzer
	Safelist  SafelistService
	Blacklist BlacklistService
	OTP       OTPService
	Stats     StatsReader
}

// Handler serves the /api endpoints.
type Handler struct {
	svc     Services
	logger  *slog.Logger
	version string
	checks  map[string]HealthCheck
	started time.Time
}

type Option func(*Handler)

func WithVersion(v string) Option {
	return func(h *Handler) {
		h.version = v
	}
}

// WithHealthCheck adds a dependency probe to /api/health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

func New(svc Services, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		svc:     svc,
		logger:  logger,
		version: "dev",
		checks:  make(map[string]HealthCheck),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Version       string            `json:"version"`
	Services      map[string]string `json:"services"`
}

// HandleHealth handles GET /api/health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Version:       h.version,
		Services:      map[string]string{"api": "healthy"},
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			resp.Services[name] = "unhealthy"
			resp.Status = "degraded"
			continue
		}
		resp.Services[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, httputil.Envelope{
		Success:   status == http.StatusOK,
		Data:      resp,
		Timestamp: time.Now().UTC(),
	})
}

// HandleLookup handles POST /api/phone/lookup.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[LookupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	v, err := h.svc.Analyzer.Analyze(ctx, req.PhoneNumber)
	if err != nil {
		h.logger.WarnContext(ctx, "phone lookup failed",
			"request_id", requestID,
			"number", phone.Mask(req.PhoneNumber),
			"error", err,
		)
		httputil.WriteError(w, toDomainError(err))
		return
	}

	h.logger.InfoContext(ctx, "phone lookup completed",
		"request_id", requestID,
		"number", phone.Mask(v.Number.String()),
		"risk_label", v.RiskLabel,
		"safelisted", v.Safelisted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteSuccess(w, http.StatusOK, verdict.ToView(v), "")
}

// SafelistResponse is the body of the safelist endpoints.
type SafelistResponse struct {
	Number     string `json:"number"`
	Safelisted bool   `json:"safelisted"`
	Label      string `json:"label,omitempty"`
}

// HandleGetSafelist handles GET /api/safelist/{number}.
func (h *Handler) HandleGetSafelist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := numberParam(r)

	entry, err := h.svc.Safelist.LookupRaw(ctx, raw)
	switch {
	case safelist.IsNotFound(err):
		httputil.WriteSuccess(w, http.StatusOK, SafelistResponse{Number: raw}, "")
		return
	case err != nil:
		h.logger.WarnContext(ctx, "safelist lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, SafelistResponse{
		Number:     entry.Number.String(),
		Safelisted: true,
		Label:      entry.Label,
	}, "")
}

// HandleAddSafelist handles POST /api/safelist.
func (h *Handler) HandleAddSafelist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SafelistRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	entry, err := h.svc.Safelist.Add(ctx, req.PhoneNumber, req.Label)
	if err != nil {
		h.logger.WarnContext(ctx, "safelist add failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, SafelistResponse{
		Number:     entry.Number.String(),
		Safelisted: true,
		Label:      entry.Label,
	}, "Phone number added to safelist")
}

// BlacklistResponse is the body of GET /api/blacklist/{number}.
type BlacklistResponse struct {
	Number        string           `json:"number"`
	IsBlacklisted bool             `json:"is_blacklisted"`
	Entry         *blacklist.Entry `json:"entry,omitempty"`
}

// HandleAddBlacklist handles POST /api/blacklist.
func (h *Handler) HandleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BlacklistRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	entry, err := h.svc.Blacklist.Add(ctx, req.PhoneNumber, req.Reason, req.AddedBy)
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, entry, "Phone number added to blacklist")
}

// HandleCheckBlacklist handles GET /api/blacklist/{number}.
func (h *Handler) HandleCheckBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := numberParam(r)

	entry, err := h.svc.Blacklist.Check(ctx, raw)
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		httputil.WriteSuccess(w, http.StatusOK, BlacklistResponse{Number: raw}, "Blacklist check completed")
		return
	case err != nil:
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, BlacklistResponse{
		Number:        entry.Number.String(),
		IsBlacklisted: true,
		Entry:         entry,
	}, "Blacklist check completed")
}

// HandleRemoveBlacklist handles DELETE /api/blacklist/{number}.
func (h *Handler) HandleRemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Blacklist.Remove(r.Context(), numberParam(r)); err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil, "Phone number removed from blacklist")
}

// HandleListBlacklist handles GET /api/blacklist.
func (h *Handler) HandleListBlacklist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Blacklist.List(r.Context())
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	if entries == nil {
		entries = []blacklist.Entry{}
	}
	httputil.WriteSuccess(w, http.StatusOK, entries, "")
}

// HandleSendOTP handles POST /api/otp/send.
func (h *Handler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OTPSendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.svc.OTP.Send(ctx, req.PhoneNumber, req.MessageTemplate)
	if err != nil {
		h.logger.WarnContext(ctx, "otp send failed",
			"request_id", requestID,
			"number", phone.Mask(req.PhoneNumber),
			"error", err,
		)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, res, "OTP sent successfully")
}

// HandleVerifyOTP handles POST /api/otp/verify. A wrong code is a
// successful call with verified=false.
func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OTPVerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.svc.OTP.Verify(ctx, req.PhoneNumber, req.OTPCode)
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	message := "Invalid OTP"
	if res.Verified {
		message = "OTP verified successfully"
	}
	httputil.WriteSuccess(w, http.StatusOK, res, message)
}

// HandleStatsSummary handles GET /api/stats/summary?hours=N.
func (h *Handler) HandleStatsSummary(w http.ResponseWriter, r *http.Request) {
	hours := defaultStatsHours
	if q := r.URL.Query().Get("hours"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > maxStatsHours {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "hours must be between 1 and 720"))
			return
		}
		hours = n
	}
	httputil.WriteSuccess(w, http.StatusOK, h.svc.Stats.Summary(hours),
		"Analytics summary for last "+strconv.Itoa(hours)+" hours")
}

// HandleStatsPerformance handles GET /api/stats/performance.
func (h *Handler) HandleStatsPerformance(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, http.StatusOK, h.svc.Stats.Performance(), "Performance statistics retrieved")
}

// toDomainError gives plain service errors a client-facing code.
func toDomainError(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, phone.ErrInvalidFormat):
		return dErrors.Wrap(err, dErrors.CodeInvalidFormat, "phone number is not in a recognizable format")
	case errors.Is(err, safelist.ErrEmptyLabel):
		return dErrors.Wrap(err, dErrors.CodeValidation, "label is required")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "request was cancelled before completion")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
}

// numberParam returns the {number} path segment. "+" usually arrives
// percent-encoded.
func numberParam(r *http.Request) string {
	raw := chi.URLParam(r, "number")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func writeNotFound(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusNotFound, httputil.Envelope{
		Success:   false,
		Error:     string(dErrors.CodeNotFound),
		Message:   "Endpoint not found",
		Timestamp: time.Now().UTC(),
	})
}
