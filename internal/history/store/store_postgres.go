package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"phonecheck/internal/phone"
	"phonecheck/internal/verdict"
	"phonecheck/pkg/platform/sentinel"
)

// Schema creates the history table.
const Schema = `
CREATE TABLE IF NOT EXISTS lookup_history (
	number      TEXT PRIMARY KEY,
	verdict     JSONB NOT NULL,
	risk_label  TEXT NOT NULL,
	risk_score  SMALLINT NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	stored_at   TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists history records in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed history store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}
	return nil
}

// Get returns the current record for n or sentinel.ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, n phone.Number) (*verdict.HistoryRecord, error) {
	var (
		key string
		raw []byte
		rec verdict.HistoryRecord
	)
	err := s.pool.QueryRow(ctx,
		`SELECT number, verdict, stored_at FROM lookup_history WHERE number = $1`, n.String(),
	).Scan(&key, &raw, &rec.StoredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get history record: %w", err)
	}
	if err := json.Unmarshal(raw, &rec.Verdict); err != nil {
		return nil, fmt.Errorf("decode history verdict: %w", err)
	}
	// The row key is authoritative; Validate flags a verdict stored under the wrong number.
	if rec.Number, err = phone.Parse(key); err != nil {
		return nil, fmt.Errorf("decode history key %q: %w", key, err)
	}
	return &rec, nil
}

// Put overwrites the record for rec.Number.
func (s *PostgresStore) Put(ctx context.Context, rec verdict.HistoryRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	raw, err := json.Marshal(rec.Verdict)
	if err != nil {
		return fmt.Errorf("encode history verdict: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO lookup_history (number, verdict, risk_label, risk_score, computed_at, stored_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (number) DO UPDATE SET
			verdict = EXCLUDED.verdict,
			risk_label = EXCLUDED.risk_label,
			risk_score = EXCLUDED.risk_score,
			computed_at = EXCLUDED.computed_at,
			stored_at = EXCLUDED.stored_at
	`, rec.Number.String(), raw, string(rec.Verdict.RiskLabel), rec.Verdict.RiskScore,
		rec.Verdict.ComputedAt, rec.StoredAt)
	if err != nil {
		return fmt.Errorf("put history record: %w", err)
	}
	return nil
}
