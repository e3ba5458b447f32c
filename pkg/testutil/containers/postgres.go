//go:build integration

// Package containers provides shared testcontainers helpers for integration
// tests. Containers are started once per test binary; Ryuk reaps them.
package containers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema is applied once per container. It mirrors the DDL documented on the
// Postgres stores.
const schema = `
CREATE TABLE IF NOT EXISTS activities (
    id            UUID PRIMARY KEY,
    kind          TEXT NOT NULL,
    name          TEXT NOT NULL,
    capacity      INT,
    age_min       INT,
    age_max       INT,
    accepting     BOOLEAN NOT NULL DEFAULT TRUE,
    window_start  TIMESTAMPTZ,
    window_end    TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS subjects (
    id            UUID PRIMARY KEY,
    kind          TEXT NOT NULL,
    name          TEXT NOT NULL,
    date_of_birth DATE,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance_records (
    id             UUID PRIMARY KEY,
    activity_kind  TEXT NOT NULL,
    activity_id    UUID NOT NULL,
    subject_kind   TEXT NOT NULL,
    subject_id     UUID NOT NULL,
    status         TEXT NOT NULL,
    check_in_time  TIMESTAMPTZ NOT NULL,
    check_out_time TIMESTAMPTZ,
    checked_in_by  UUID NOT NULL,
    checked_out_by UUID,
    notes          TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_attendance_active
    ON attendance_records (subject_id, activity_id)
    WHERE status = 'CHECKED_IN';

CREATE TABLE IF NOT EXISTS occupancy_counters (
    activity_id UUID PRIMARY KEY,
    current     INT NOT NULL DEFAULT 0 CHECK (current >= 0)
);
`

// PostgresContainer wraps a testcontainers Postgres instance with a ready
// pgx pool and the project schema applied.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	Pool      *pgxpool.Pool
}

var (
	pgOnce      sync.Once
	pgShared    *PostgresContainer
	pgSharedErr error
)

// GetPostgres returns the shared Postgres container, starting it on first use.
func GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	pgOnce.Do(func() {
		pgShared, pgSharedErr = startPostgres()
	})
	if pgSharedErr != nil {
		t.Fatalf("failed to start postgres container: %v", pgSharedErr)
	}
	return pgShared
}

func startPostgres() (*PostgresContainer, error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("rollcall"),
		tcpostgres.WithUsername("rollcall"),
		tcpostgres.WithPassword("rollcall"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("run container: %w", err)
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	applyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := pool.Exec(applyCtx, schema); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresContainer{Container: container, Pool: pool}, nil
}

// TruncateTables clears the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.Pool.Exec(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}
