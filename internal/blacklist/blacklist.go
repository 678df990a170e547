// Package blacklist manages numbers operators have reported as abusive.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"phonecheck/internal/phone"
	dErrors "phonecheck/pkg/domain-errors"
	"phonecheck/pkg/platform/sentinel"
	"phonecheck/pkg/requestcontext"
)

const maxReasonLen = 500

// Entry is one blacklisted number.
type Entry struct {
	Number    phone.Number `json:"number"`
	Reason    string       `json:"reason"`
	AddedBy   string       `json:"added_by"`
	CreatedAt time.Time    `json:"created_at"`
}

// Store persists blacklist entries keyed by canonical number.
type Store interface {
	Get(ctx context.Context, n phone.Number) (*Entry, error)
	Put(ctx context.Context, e Entry) error
	Delete(ctx context.Context, n phone.Number) error
	List(ctx context.Context) ([]Entry, error)
}

type Service struct {
	store      Store
	normalizer phone.Normalizer
	logger     *slog.Logger
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

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) parse(raw string) (phone.Number, error) {
	n, err := s.normalizer.Normalize(raw)
	if err != nil {
		return phone.Number{}, dErrors.Wrap(err, dErrors.CodeInvalidFormat, "phone number is not in a recognizable format")
	}
	return n, nil
}

// Add blacklists raw. An existing entry is replaced.
func (s *Service) Add(ctx context.Context, raw, reason, addedBy string) (*Entry, error) {
	n, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if len(reason) > maxReasonLen {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("reason must be at most %d characters", maxReasonLen))
	}
	addedBy = strings.TrimSpace(addedBy)
	if addedBy == "" {
		addedBy = requestcontext.Subject(ctx)
	}
	if addedBy == "" {
		addedBy = "system"
	}

	e := Entry{Number: n, Reason: reason, AddedBy: addedBy, CreatedAt: requestcontext.Now(ctx)}
	if err := s.store.Put(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store blacklist entry")
	}
	s.logger.InfoContext(ctx, "number blacklisted",
		"number", phone.Mask(n.String()),
		"added_by", addedBy,
	)
	return &e, nil
}

// Check returns the entry for raw, or a not_found error.
func (s *Service) Check(ctx context.Context, raw string) (*Entry, error) {
	n, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	e, err := s.store.Get(ctx, n)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "number is not blacklisted")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read blacklist")
	}
	return e, nil
}

// Remove deletes the entry for raw.
func (s *Service) Remove(ctx context.Context, raw string) error {
	n, err := s.parse(raw)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, n); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "number is not blacklisted")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove blacklist entry")
	}
	s.logger.InfoContext(ctx, "number removed from blacklist", "number", phone.Mask(n.String()))
	return nil
}

// List returns every entry, newest first.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list blacklist")
	}
	return entries, nil
}
