// Package store provides SQLite persistence for knowledge entries, match records,
// the sync run ledger, and cached document embeddings.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS knowledge_entries (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	content    TEXT NOT NULL,
	context    TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_created ON knowledge_entries(created_at);

CREATE TABLE IF NOT EXISTS match_records (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id       TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	document_path  TEXT,
	similarity     REAL NOT NULL DEFAULT 0,
	action         TEXT NOT NULL,
	rationale      TEXT NOT NULL DEFAULT '',
	target_section TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_matches_entry ON match_records(entry_id, id);
CREATE INDEX IF NOT EXISTS idx_matches_run ON match_records(run_id);

CREATE TABLE IF NOT EXISTS sync_runs (
	id                 TEXT PRIMARY KEY,
	started_at         TEXT NOT NULL,
	finished_at        TEXT,
	window_start       TEXT NOT NULL,
	status             TEXT NOT NULL,
	processed          INTEGER NOT NULL DEFAULT 0,
	enriched           INTEGER NOT NULL DEFAULT 0,
	redundant          INTEGER NOT NULL DEFAULT 0,
	orphaned           INTEGER NOT NULL DEFAULT 0,
	tangential         INTEGER NOT NULL DEFAULT 0,
	documents_enriched TEXT NOT NULL DEFAULT '[]',
	documents_created  TEXT NOT NULL DEFAULT '[]',
	commit_ref         TEXT,
	errors             TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_runs_status_started ON sync_runs(status, started_at);

CREATE TABLE IF NOT EXISTS doc_embeddings (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL,
	model      TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
`

// timeLayout is fixed-width so that TEXT comparisons order chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps a sql.DB with store-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse time %q: %w", s, err)
	}
	return t, nil
}
