package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"phonecheck/internal/phone"
	"phonecheck/internal/safelist"
	"phonecheck/pkg/platform/sentinel"
	"phonecheck/pkg/platform/tx"
)

// importChunk bounds the array size sent per upsert statement.
const importChunk = 1000

// Schema creates the safelist table.
const Schema = `
CREATE TABLE IF NOT EXISTS safelist_entries (
	number     TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists safelist entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed safelist store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate safelist: %w", err)
	}
	return nil
}

// Lookup returns the label for n or sentinel.ErrNotFound.
func (s *PostgresStore) Lookup(ctx context.Context, n phone.Number) (string, error) {
	var label string
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT label FROM safelist_entries WHERE number = $1`, n.String()).Scan(&label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("lookup safelist entry: %w", err)
	}
	return label, nil
}

// Add upserts e.
func (s *PostgresStore) Add(ctx context.Context, e safelist.Entry) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO safelist_entries (number, label)
		VALUES ($1, $2)
		ON CONFLICT (number) DO UPDATE SET
			label = EXCLUDED.label,
			updated_at = now()
	`, e.Number.String(), e.Label)
	if err != nil {
		return fmt.Errorf("add safelist entry: %w", err)
	}
	return nil
}

// ImportBulk upserts entries in chunks inside one transaction, so a failed
// import leaves the table untouched.
// Entries must not repeat a number; safelist.Service deduplicates.
func (s *PostgresStore) ImportBulk(ctx context.Context, entries []safelist.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		for start := 0; start < len(entries); start += importChunk {
			end := min(start+importChunk, len(entries))
			if err := s.upsertChunk(ctx, entries[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) upsertChunk(ctx context.Context, entries []safelist.Entry) error {
	numbers := make([]string, len(entries))
	labels := make([]string, len(entries))
	for i, e := range entries {
		numbers[i] = e.Number.String()
		labels[i] = e.Label
	}

	// Batch upsert using unnest for one round trip
	query := `
		INSERT INTO safelist_entries (number, label)
		SELECT * FROM unnest($1::text[], $2::text[])
		ON CONFLICT (number) DO UPDATE SET
			label = EXCLUDED.label,
			updated_at = now()
	`
	if _, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, pq.Array(numbers), pq.Array(labels)); err != nil {
		return fmt.Errorf("import safelist batch: %w", err)
	}
	return nil
}
