//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema is the full database schema, applied once when the container
// starts. Keep it in sync with the store doc comments.
const schema = `
CREATE TABLE IF NOT EXISTS verification_runs (
    run_id      UUID PRIMARY KEY,
    client_id   TEXT NOT NULL,
    client_name TEXT NOT NULL,
    document    JSONB NOT NULL,
    aborted     BOOLEAN NOT NULL DEFAULT FALSE,
    risk_level  TEXT,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS review_items (
    id                UUID PRIMARY KEY,
    run_id            UUID NOT NULL REFERENCES verification_runs(run_id) ON DELETE CASCADE,
    verification_type TEXT NOT NULL,
    client_id         TEXT NOT NULL,
    issues            TEXT[] NOT NULL,
    status            TEXT NOT NULL,
    requested_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS review_items_pending_idx ON review_items (status, requested_at);

CREATE TABLE IF NOT EXISTS reviewer_accounts (
    id                 UUID PRIMARY KEY,
    email              TEXT NOT NULL UNIQUE,
    name               TEXT NOT NULL,
    password_hash      TEXT NOT NULL,
    active             BOOLEAN NOT NULL DEFAULT TRUE,
    device_fingerprint TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
    id             UUID PRIMARY KEY,
    aggregate_type TEXT NOT NULL,
    aggregate_id   TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    payload        JSONB NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    published_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox (created_at) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_events (
    id           UUID PRIMARY KEY,
    category     TEXT NOT NULL,
    timestamp    TIMESTAMPTZ NOT NULL,
    run_id       UUID,
    client_id    TEXT NOT NULL DEFAULT '',
    subject      TEXT NOT NULL DEFAULT '',
    action       TEXT NOT NULL,
    decision     TEXT NOT NULL DEFAULT '',
    reason       TEXT NOT NULL DEFAULT '',
    reviewer_id  TEXT NOT NULL DEFAULT '',
    request_id   TEXT NOT NULL DEFAULT '',
    device_label TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_run_idx ON audit_events (run_id, timestamp);

CREATE TABLE IF NOT EXISTS audit_compliance (
    id          UUID PRIMARY KEY,
    timestamp   TIMESTAMPTZ NOT NULL,
    run_id      UUID NOT NULL,
    client_id   TEXT NOT NULL DEFAULT '',
    subject     TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    decision    TEXT NOT NULL DEFAULT '',
    reviewer_id TEXT NOT NULL DEFAULT '',
    request_id  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS audit_security (
    id           UUID PRIMARY KEY,
    timestamp    TIMESTAMPTZ NOT NULL,
    subject      TEXT NOT NULL DEFAULT '',
    action       TEXT NOT NULL,
    reason       TEXT NOT NULL DEFAULT '',
    ip           TEXT NOT NULL DEFAULT '',
    request_id   TEXT NOT NULL DEFAULT '',
    reviewer_id  TEXT NOT NULL DEFAULT '',
    device_label TEXT NOT NULL DEFAULT '',
    severity     TEXT NOT NULL DEFAULT 'info'
);

CREATE TABLE IF NOT EXISTS audit_ops (
    id         UUID NOT NULL,
    timestamp  TIMESTAMPTZ NOT NULL,
    run_id     UUID,
    subject    TEXT NOT NULL DEFAULT '',
    action     TEXT NOT NULL,
    request_id TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (id, timestamp)
);
`

// PostgresContainer wraps a testcontainers Postgres instance. DB serves the
// database/sql stores (records, audit outbox); Pool serves the pgx-backed
// reviewer account store.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("provenance_test"),
		tcpostgres.WithUsername("provenance"),
		tcpostgres.WithPassword("provenance"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to create pgx pool: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		pool.Close()
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
		Pool:      pool,
	}
}

// TruncateTables empties the given tables and cascades to dependents.
// Use between tests to ensure isolation; list tables in dependency order.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	_, err := p.DB.ExecContext(ctx, query)
	return err
}
