// Package otp sends and verifies one-time codes by SMS.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"phonecheck/internal/phone"
	dErrors "phonecheck/pkg/domain-errors"
	"phonecheck/pkg/platform/sentinel"
	"phonecheck/pkg/requestcontext"
)

const (
	DefaultTTL         = 300 * time.Second
	DefaultMaxAttempts = 5
	codeDigits         = 6
	defaultTemplate    = "Your PhoneCheck verification code is {code}. It expires in 5 minutes."
)

// Challenge is a pending code for one number. Only the bcrypt hash of the
// code is kept.
type Challenge struct {
	Number       phone.Number `json:"number"`
	CodeHash     []byte       `json:"code_hash"`
	ExpiresAt    time.Time    `json:"expires_at"`
	AttemptsLeft int          `json:"attempts_left"`
}

// Store keeps at most one challenge per number. Get returns
// sentinel.ErrNotFound when there is none.
type Store interface {
	Save(ctx context.Context, c Challenge) error
	Get(ctx context.Context, n phone.Number) (*Challenge, error)
	Delete(ctx context.Context, n phone.Number) error
}

// Sender delivers the message text to a number.
type Sender interface {
	Send(ctx context.Context, to phone.Number, body string) error
}

// SendResult is returned to the caller after a code was sent.
type SendResult struct {
	Sent      bool `json:"otp_sent"`
	ExpiresIn int  `json:"expires_in"`
}

// VerifyResult reports whether the code matched.
type VerifyResult struct {
	Verified          bool `json:"verified"`
	AttemptsRemaining int  `json:"attempts_remaining"`
}

type Service struct {
	store       Store
	sender      Sender
	normalizer  phone.Normalizer
	logger      *slog.Logger
	ttl         time.Duration
	maxAttempts int
	hashCost    int
	generate    func() (string, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithNormalizer(z phone.Normalizer) Option {
	return func(s *Service) {
		s.normalizer = z
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithHashCost sets the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

func NewService(store Store, sender Sender, opts ...Option) *Service {
	s := &Service{
		store:       store,
		sender:      sender,
		logger:      slog.Default(),
		ttl:         DefaultTTL,
		maxAttempts: DefaultMaxAttempts,
		hashCost:    bcrypt.DefaultCost,
		generate:    generateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send generates a fresh code for raw, replacing any pending one, and hands
// the message to the sender. template may contain {code}.
func (s *Service) Send(ctx context.Context, raw, template string) (*SendResult, error) {
	n, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidFormat, "phone number is not in a recognizable format")
	}
	code, err := s.generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash code")
	}

	c := Challenge{
		Number:       n,
		CodeHash:     hash,
		ExpiresAt:    requestcontext.Now(ctx).Add(s.ttl),
		AttemptsLeft: s.maxAttempts,
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store code")
	}
	if err := s.sender.Send(ctx, n, renderMessage(template, code)); err != nil {
		_ = s.store.Delete(ctx, n)
		s.logger.ErrorContext(ctx, "failed to send otp", "number", phone.Mask(n.String()), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to send code")
	}

	s.logger.InfoContext(ctx, "otp sent", "number", phone.Mask(n.String()))
	return &SendResult{Sent: true, ExpiresIn: int(s.ttl.Seconds())}, nil
}

// Verify checks code against the pending challenge for raw. A match consumes
// the challenge. Expired or exhausted challenges are removed.
func (s *Service) Verify(ctx context.Context, raw, code string) (*VerifyResult, error) {
	n, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidFormat, "phone number is not in a recognizable format")
	}
	code = strings.TrimSpace(code)
	if len(code) != codeDigits {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("code must be %d digits", codeDigits))
	}

	c, err := s.store.Get(ctx, n)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &VerifyResult{Verified: false}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read code")
	}

	if !requestcontext.Now(ctx).Before(c.ExpiresAt) {
		_ = s.store.Delete(ctx, n)
		return &VerifyResult{Verified: false}, nil
	}

	if bcrypt.CompareHashAndPassword(c.CodeHash, []byte(code)) == nil {
		if err := s.store.Delete(ctx, n); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume code")
		}
		s.logger.InfoContext(ctx, "otp verified", "number", phone.Mask(n.String()))
		return &VerifyResult{Verified: true}, nil
	}

	c.AttemptsLeft--
	if c.AttemptsLeft <= 0 {
		_ = s.store.Delete(ctx, n)
		s.logger.WarnContext(ctx, "otp attempts exhausted", "number", phone.Mask(n.String()))
		return nil, dErrors.New(dErrors.CodeRateLimited, "too many failed attempts, request a new code")
	}
	if err := s.store.Save(ctx, *c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update code")
	}
	return &VerifyResult{Verified: false, AttemptsRemaining: c.AttemptsLeft}, nil
}

func renderMessage(template, code string) string {
	if !strings.Contains(template, "{code}") {
		template = defaultTemplate
	}
	return strings.ReplaceAll(template, "{code}", code)
}

func generateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, v.Int64()), nil
}
