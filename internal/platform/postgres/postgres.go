// Package postgres opens the shared database handle and owns the schema DDL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open connects and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// schema is idempotent; EnsureSchema runs at startup and in integration tests.
const schema = `
CREATE TABLE IF NOT EXISTS watchlist_snapshots (
	id           UUID PRIMARY KEY,
	list_date    DATE NOT NULL UNIQUE,
	checksum     TEXT NOT NULL,
	ingested_at  TIMESTAMPTZ NOT NULL,
	entry_count  INTEGER NOT NULL,
	is_current   BOOLEAN NOT NULL DEFAULT false
);

CREATE UNIQUE INDEX IF NOT EXISTS watchlist_snapshots_one_current
	ON watchlist_snapshots (is_current) WHERE is_current;

CREATE TABLE IF NOT EXISTS watchlist_entries (
	id                   UUID PRIMARY KEY,
	snapshot_id          UUID NOT NULL REFERENCES watchlist_snapshots(id) ON DELETE CASCADE,
	list_date            DATE NOT NULL,
	primary_name         TEXT NOT NULL,
	alternate_names      TEXT[] NOT NULL DEFAULT '{}',
	street               TEXT NOT NULL DEFAULT '',
	city                 TEXT NOT NULL DEFAULT '',
	country              TEXT NOT NULL DEFAULT '',
	category             TEXT NOT NULL,
	remarks              TEXT NOT NULL DEFAULT '',
	normalized_name      TEXT NOT NULL,
	normalized_alt_names TEXT[] NOT NULL DEFAULT '{}',
	normalized_street    TEXT NOT NULL DEFAULT '',
	normalized_city      TEXT NOT NULL DEFAULT '',
	normalized_country   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS watchlist_entries_snapshot_idx
	ON watchlist_entries (snapshot_id);

CREATE TABLE IF NOT EXISTS score_records (
	customer_id      TEXT NOT NULL,
	list_date        DATE NOT NULL,
	score            INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	matched_entry_id TEXT NOT NULL DEFAULT '',
	scored_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (customer_id, list_date)
);

CREATE INDEX IF NOT EXISTS score_records_date_score_idx
	ON score_records (list_date, score DESC);

CREATE TABLE IF NOT EXISTS score_runs (
	id              UUID PRIMARY KEY,
	list_date       DATE NOT NULL UNIQUE,
	state           TEXT NOT NULL,
	total_customers INTEGER NOT NULL DEFAULT 0,
	completed       INTEGER NOT NULL DEFAULT 0,
	failed          INTEGER NOT NULL DEFAULT 0,
	failed_ids      TEXT[] NOT NULL DEFAULT '{}',
	started_at      TIMESTAMPTZ,
	finished_at     TIMESTAMPTZ
);

-- Read-only projection refreshed by the customer system of record. The
-- screening core never writes to it.
CREATE TABLE IF NOT EXISTS customer_identities (
	customer_id  TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	country      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS audit_outbox (
	id           UUID PRIMARY KEY,
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx
	ON audit_outbox (created_at) WHERE published_at IS NULL;
`

// EnsureSchema creates all tables used by the service when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
