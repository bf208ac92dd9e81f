package db

import (
	"context"
	"database/sql"
	"fmt"
)

type Migration struct {
	Version int
	UpSQL   string
	DownSQL string
}

var migrations = []Migration{
	{
		Version: 1,
		UpSQL: `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	stopped_at TEXT,
	session_info_path TEXT NOT NULL DEFAULT '',
	telemetry_path TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS change_blocks (
	block_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	stream TEXT NOT NULL CHECK(stream IN ('session_info','telemetry')),
	seq INTEGER NOT NULL,
	session_num INTEGER NOT NULL,
	session_time REAL NOT NULL,
	tick INTEGER NOT NULL,
	recorded_at TEXT NOT NULL,
	UNIQUE(run_id, stream, seq),
	FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS change_lines (
	block_id TEXT NOT NULL,
	line_no INTEGER NOT NULL,
	line TEXT NOT NULL,
	PRIMARY KEY(block_id, line_no),
	FOREIGN KEY(block_id) REFERENCES change_blocks(block_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS runs_started_at
ON runs(started_at DESC);

CREATE INDEX IF NOT EXISTS change_blocks_stream_recorded_at
ON change_blocks(stream, recorded_at DESC);
`,
		DownSQL: `
DROP INDEX IF EXISTS change_blocks_stream_recorded_at;
DROP INDEX IF EXISTS runs_started_at;
DROP TABLE IF EXISTS change_lines;
DROP TABLE IF EXISTS change_blocks;
DROP TABLE IF EXISTS runs;
DROP TABLE IF EXISTS schema_migrations;
`,
	},
}

func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func RollbackAll(ctx context.Context, db *sql.DB) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin rollback tx %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("rollback migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit rollback %d: %w", m.Version, err)
		}
	}
	return nil
}
