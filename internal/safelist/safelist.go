// Package safelist holds the trusted-number mapping consulted before any
// provider is called.
package safelist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"phonecheck/internal/phone"
	"phonecheck/pkg/platform/sentinel"
)

// DefaultLabelPrefix is prepended to contact names on import.
const DefaultLabelPrefix = "✅ SAFE – "

// ErrEmptyLabel is returned when an entry has no label text.
var ErrEmptyLabel = errors.New("safelist label is required")

// Entry is one trusted number. Entries never expire.
type Entry struct {
	Number phone.Number `json:"number"`
	Label  string       `json:"label"`
}

// Store persists entries keyed by canonical number. Writes are
// last-write-wins upserts.
type Store interface {
	// Lookup returns the label for n or sentinel.ErrNotFound.
	Lookup(ctx context.Context, n phone.Number) (string, error)
	// Add upserts a single entry.
	Add(ctx context.Context, e Entry) error
	// ImportBulk upserts every entry.
	ImportBulk(ctx context.Context, entries []Entry) error
}

// Service normalizes raw input before touching the store.
type Service struct {
	store      Store
	normalizer phone.Normalizer
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithNormalizer sets the normalizer used for raw numbers.
func WithNormalizer(z phone.Normalizer) Option {
	return func(s *Service) {
		s.normalizer = z
	}
}

// NewService creates a safelist service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns the label for a number already in canonical form.
func (s *Service) Lookup(ctx context.Context, n phone.Number) (string, error) {
	return s.store.Lookup(ctx, n)
}

// LookupRaw normalizes raw and looks it up.
func (s *Service) LookupRaw(ctx context.Context, raw string) (Entry, error) {
	n, err := s.normalizer.Normalize(raw)
	if err != nil {
		return Entry{}, err
	}
	label, err := s.store.Lookup(ctx, n)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Number: n, Label: label}, nil
}

// Add normalizes raw and stores it with label.
func (s *Service) Add(ctx context.Context, raw, label string) (Entry, error) {
	n, err := s.normalizer.Normalize(raw)
	if err != nil {
		return Entry{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return Entry{}, ErrEmptyLabel
	}
	e := Entry{Number: n, Label: label}
	if err := s.store.Add(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("add safelist entry: %w", err)
	}
	s.logger.InfoContext(ctx, "safelist entry added", "number", phone.Mask(n.String()))
	return e, nil
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}

// RawEntry is an un-normalized {number, label} pair from an import source.
type RawEntry struct {
	Number string
	Label  string
}

// ImportBulk normalizes every pair, skips the ones that do not parse and
// upserts the rest. Later duplicates win.
func (s *Service) ImportBulk(ctx context.Context, raw []RawEntry) (ImportResult, error) {
	var res ImportResult
	byNumber := make(map[phone.Number]int, len(raw))
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		n, err := s.normalizer.Normalize(r.Number)
		label := strings.TrimSpace(r.Label)
		if err != nil || label == "" {
			res.Skipped = append(res.Skipped, r.Number)
			continue
		}
		if i, dup := byNumber[n]; dup {
			entries[i].Label = label
			continue
		}
		byNumber[n] = len(entries)
		entries = append(entries, Entry{Number: n, Label: label})
	}
	if len(entries) == 0 {
		return res, nil
	}
	if err := s.store.ImportBulk(ctx, entries); err != nil {
		return res, fmt.Errorf("import safelist: %w", err)
	}
	res.Imported = len(entries)
	s.logger.InfoContext(ctx, "safelist imported", "imported", res.Imported, "skipped", len(res.Skipped))
	return res, nil
}

// IsNotFound reports whether err means the number is not safelisted.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
