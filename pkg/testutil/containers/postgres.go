//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"phonecheck/internal/platform/config"
	platformpostgres "phonecheck/internal/platform/postgres"
)

// PostgresContainer is a running Postgres with both handles the stores use:
// a database/sql handle (lib/pq) and a pgx pool.
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	Config    config.PostgresConfig
	DB        *sql.DB
	Pool      *pgxpool.Pool

	conn *platformpostgres.DB
}

// NewPostgresContainer starts Postgres 16 and connects via platform/postgres.Open.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("phonecheck"),
		postgres.WithUsername("phonecheck"),
		postgres.WithPassword("phonecheck"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("postgres connection string: %v", err)
	}

	cfg := config.PostgresConfig{DSN: dsn, MaxConns: 4}
	conn, err := platformpostgres.Open(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect postgres: %v", err)
	}
	return &PostgresContainer{
		Container: container,
		Config:    cfg,
		DB:        conn.SQL,
		Pool:      conn.Pool,
		conn:      conn,
	}
}

func (p *PostgresContainer) Close(t *testing.T) {
	t.Helper()
	_ = p.conn.Close()
	if err := p.Container.Terminate(context.Background()); err != nil {
		t.Logf("terminate postgres container: %v", err)
	}
}
