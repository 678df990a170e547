// Package postgres opens the two PostgreSQL handles the service uses: a
// pgx pool for the history store and a database/sql handle (lib/pq) for the
// safelist store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"phonecheck/internal/platform/config"
)

// DB bundles both handles over the same database.
type DB struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// Open connects and pings. Returns nil if no DSN is configured.
func Open(ctx context.Context, cfg config.PostgresConfig) (*DB, error) {
	if cfg.DSN == "" {
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	sqlDB, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(int(max(cfg.MaxConns, 2)))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	if err := sqlDB.PingContext(ctx); err != nil {
		pool.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &DB{Pool: pool, SQL: sqlDB}, nil
}

// Health pings the pool.
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *DB) Close() error {
	db.Pool.Close()
	return db.SQL.Close()
}
