package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"phonecheck/internal/phone"
	"phonecheck/internal/safelist"
	"phonecheck/pkg/platform/sentinel"
)

// JSONFileStore persists the safelist as a single JSON object mapping number
// to label. The whole file is loaded on open and rewritten atomically (temp
// file + rename) on every write.
//
// Keys are canonicalised on load, so hand-written files such as
// {"+61 412 345 678": "..."} still match lookups. Keys that do not parse are
// kept verbatim on rewrite and reported by Skipped.
type JSONFileStore struct {
	mu         sync.RWMutex
	path       string
	normalizer phone.Normalizer
	entries    map[string]string
	invalid    map[string]string
}

// JSONFileOption configures a JSONFileStore.
type JSONFileOption func(*JSONFileStore)

// WithFileNormalizer sets the normalizer applied to keys on load.
func WithFileNormalizer(z phone.Normalizer) JSONFileOption {
	return func(s *JSONFileStore) {
		s.normalizer = z
	}
}

// OpenJSONFile loads path, treating a missing file as an empty safelist.
func OpenJSONFile(path string, opts ...JSONFileOption) (*JSONFileStore, error) {
	s := &JSONFileStore{
		path:    path,
		entries: make(map[string]string),
		invalid: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read safelist file: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	var decoded map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode safelist file %s: %w", path, err)
	}

	// Sorted so that two spellings of one number resolve the same way every load.
	keys := make([]string, 0, len(decoded))
	for k := range decoded {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		n, err := s.normalizer.Normalize(k)
		if err != nil {
			s.invalid[k] = decoded[k]
			continue
		}
		s.entries[n.String()] = decoded[k]
	}
	return s, nil
}

// Skipped returns the file keys that are not phone numbers, sorted.
func (s *JSONFileStore) Skipped() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.invalid))
	for k := range s.invalid {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Lookup returns the label for n or sentinel.ErrNotFound.
func (s *JSONFileStore) Lookup(_ context.Context, n phone.Number) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if label, ok := s.entries[n.String()]; ok {
		return label, nil
	}
	return "", sentinel.ErrNotFound
}

// Add upserts e and rewrites the file.
func (s *JSONFileStore) Add(ctx context.Context, e safelist.Entry) error {
	return s.ImportBulk(ctx, []safelist.Entry{e})
}

// ImportBulk upserts entries and rewrites the file once. On write failure
// the in-memory state is rolled back.
func (s *JSONFileStore) ImportBulk(_ context.Context, entries []safelist.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.entries)+len(entries))
	for k, v := range s.entries {
		next[k] = v
	}
	for _, e := range entries {
		next[e.Number.String()] = e.Label
	}

	file := make(map[string]string, len(next)+len(s.invalid))
	for k, v := range s.invalid {
		file[k] = v
	}
	for k, v := range next {
		file[k] = v
	}
	if err := writeJSONAtomic(s.path, file); err != nil {
		return err
	}
	s.entries = next
	return nil
}

func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create safelist dir: %w", err)
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode safelist: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".safelist-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace safelist file: %w", err)
	}
	return nil
}
