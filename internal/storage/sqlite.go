package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the journal database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := ValidateLocalFilesystem(path, "state.path"); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS task_run (
  id              TEXT PRIMARY KEY,
  dispatcher_pid  INTEGER NOT NULL,
  started_at      TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS task_log (
  id              TEXT PRIMARY KEY,
  run_id          TEXT NOT NULL REFERENCES task_run(id),
  seq             INTEGER NOT NULL,
  callable        TEXT NOT NULL,
  arguments       JSON NOT NULL,
  fingerprint     TEXT NOT NULL,
  pid             INTEGER NOT NULL,
  owner_pid       INTEGER NOT NULL,
  started_at      TEXT NOT NULL,
  raw_status      INTEGER,
  exit_code       INTEGER,
  signal          TEXT,
  collected_at    TEXT
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS task_log_run_seq_idx ON task_log(run_id, seq);`,
		`CREATE INDEX IF NOT EXISTS task_log_fingerprint_idx ON task_log(fingerprint);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
