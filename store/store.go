// Package store is the persistence layer: a thin wrapper around
// database/sql plus one file of repository methods per table. Raw SQL is
// used throughout rather than an ORM, so every query is auditable in
// place; the only abstraction is the connection pool itself.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite connection pool. Only methods defined on it (here
// and in the per-table files) are exposed; callers never see *sql.DB.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at dbPath and
// runs the schema migration. SQLite serializes writes at the file level,
// so the pool is capped at a single connection to avoid "database is
// locked" errors under concurrent writers.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database at %q: %w", dbPath, err)
	}
	conn.SetMaxOpenConns(1)

	store := &Store{conn: conn, logger: logger}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("database opened and migrated", "path", dbPath)
	return store, nil
}

// Close releases the connection pool. Callers should defer this
// immediately after Open returns successfully.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping confirms the underlying connection is reachable, for the /ready
// handler to distinguish "process up" from "can serve traffic".
func (s *Store) Ping() error {
	return s.conn.Ping()
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(schema)
	return err
}

// schema is applied with IF NOT EXISTS on every startup, which is
// sufficient for a single-binary control plane with no schema versioning.
const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS team_members (
	team_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	role    TEXT NOT NULL,
	PRIMARY KEY (team_id, user_id)
);

CREATE TABLE IF NOT EXISTS stacks (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	team_id         TEXT NOT NULL,
	compose_content TEXT NOT NULL,
	status          TEXT NOT NULL,
	webhook_token   TEXT NOT NULL,
	cron_schedule   TEXT,
	git_url         TEXT,
	git_branch      TEXT,
	last_commit     TEXT,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stack_env_vars (
	id             TEXT PRIMARY KEY,
	stack_id       TEXT NOT NULL,
	container_name TEXT NOT NULL DEFAULT '',
	key            TEXT NOT NULL,
	value          TEXT NOT NULL,
	is_secret      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS domains (
	id             TEXT PRIMARY KEY,
	stack_id       TEXT NOT NULL,
	container_name TEXT NOT NULL,
	container_port INTEGER NOT NULL,
	domain         TEXT NOT NULL UNIQUE,
	ssl_enabled    INTEGER NOT NULL DEFAULT 1,
	verified       INTEGER NOT NULL DEFAULT 0,
	provider       TEXT NOT NULL,
	type           TEXT NOT NULL,
	tunnel_id      TEXT,
	dns_record_id  TEXT,
	proxied        INTEGER NOT NULL DEFAULT 0,
	show_branding  INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS registry_credentials (
	id       TEXT PRIMARY KEY,
	team_id  TEXT NOT NULL,
	registry TEXT NOT NULL,
	username TEXT NOT NULL,
	password TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS deployment_logs (
	id          TEXT PRIMARY KEY,
	stack_id    TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	status      TEXT NOT NULL,
	logs        TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS resource_metrics (
	id           TEXT PRIMARY KEY,
	container_id TEXT NOT NULL,
	stack_id     TEXT NOT NULL,
	cpu_percent  REAL NOT NULL,
	memory_bytes INTEGER NOT NULL,
	timestamp    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dns_configs (
	id      TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	config   TEXT NOT NULL,
	UNIQUE (team_id, provider)
);

CREATE INDEX IF NOT EXISTS idx_stack_env_vars_stack_id ON stack_env_vars (stack_id);
CREATE INDEX IF NOT EXISTS idx_domains_stack_id ON domains (stack_id);
CREATE INDEX IF NOT EXISTS idx_deployment_logs_stack_id ON deployment_logs (stack_id);
CREATE INDEX IF NOT EXISTS idx_resource_metrics_stack_id ON resource_metrics (stack_id);
CREATE INDEX IF NOT EXISTS idx_resource_metrics_timestamp ON resource_metrics (timestamp);
`

// scanner is satisfied by both *sql.Row and *sql.Rows, letting every
// scanXxx helper work with QueryRow and Query alike.
type scanner interface {
	Scan(dest ...any) error
}
