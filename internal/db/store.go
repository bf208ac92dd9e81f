package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/crbraun/irsdkrec/internal/model"
)

var (
	ErrDuplicate = errors.New("duplicate")
	ErrNotFound  = errors.New("not found")
)

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) InsertRun(ctx context.Context, run model.Run) error {
	if run.RunID == "" {
		return fmt.Errorf("insert run: empty run id")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs(run_id, started_at, stopped_at, session_info_path, telemetry_path)
VALUES (?, ?, ?, ?, ?)
`, run.RunID, ts(run.StartedAt), nullableTS(run.StoppedAt), run.SessionInfoPath, run.TelemetryPath)
	if err != nil {
		if isUniqueErr(err) {
			return fmt.Errorf("insert run %s: %w", run.RunID, ErrDuplicate)
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, runID string, stoppedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET stopped_at = ? WHERE run_id = ?`, ts(stoppedAt), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (model.Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, started_at, stopped_at, session_info_path, telemetry_path
FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	return run, err
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, started_at, stopped_at, session_info_path, telemetry_path
FROM runs
ORDER BY started_at DESC, run_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// AppendBlock stores b and its lines in one transaction. Blocks are numbered
// from 1 within each (run, stream) pair.
func (s *Store) AppendBlock(ctx context.Context, b model.Block) (string, error) {
	if b.RecordedAt.IsZero() {
		b.RecordedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin append block tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var seq int64
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0) + 1 FROM change_blocks WHERE run_id = ? AND stream = ?
`, b.RunID, string(b.Stream)).Scan(&seq); err != nil {
		return "", fmt.Errorf("next block seq: %w", err)
	}

	blockID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
INSERT INTO change_blocks(block_id, run_id, stream, seq, session_num, session_time, tick, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, blockID, b.RunID, string(b.Stream), seq, b.SessionNum, b.SessionTime, b.Tick, ts(b.RecordedAt))
	if err != nil {
		switch {
		case isUniqueErr(err):
			return "", fmt.Errorf("insert block: %w", ErrDuplicate)
		case isForeignKeyErr(err):
			return "", fmt.Errorf("insert block for run %s: %w", b.RunID, ErrNotFound)
		}
		return "", fmt.Errorf("insert block: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO change_lines(block_id, line_no, line) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare line insert: %w", err)
	}
	defer stmt.Close()
	for i, line := range b.Lines {
		if _, err := stmt.ExecContext(ctx, blockID, i, line); err != nil {
			return "", fmt.Errorf("insert line %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit append block: %w", err)
	}
	return blockID, nil
}

// ListBlocks returns archived blocks in recording order. An empty runID or
// stream matches all; limit <= 0 means no limit.
func (s *Store) ListBlocks(ctx context.Context, runID string, stream model.Stream, limit int) ([]model.ArchivedBlock, error) {
	var (
		where []string
		args  []any
	)
	if runID != "" {
		where = append(where, "run_id = ?")
		args = append(args, runID)
	}
	if stream != "" {
		where = append(where, "stream = ?")
		args = append(args, string(stream))
	}
	query := `
SELECT block_id, run_id, stream, seq, session_num, session_time, tick, recorded_at
FROM change_blocks`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY rowid ASC"
	if limit > 0 {
		query += "\nLIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	out := []model.ArchivedBlock{}
	for rows.Next() {
		var (
			ab         model.ArchivedBlock
			rawStream  string
			recordedAt string
		)
		if err := rows.Scan(&ab.BlockID, &ab.RunID, &rawStream, &ab.Seq, &ab.SessionNum, &ab.SessionTime, &ab.Tick, &recordedAt); err != nil {
			rows.Close() //nolint:errcheck
			return nil, fmt.Errorf("scan block: %w", err)
		}
		ab.Stream = model.Stream(rawStream)
		if ab.RecordedAt, err = parseTS(recordedAt); err != nil {
			rows.Close() //nolint:errcheck
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		out = append(out, ab)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	rows.Close() //nolint:errcheck

	// Lines are loaded after the block cursor is closed; the store holds a
	// single connection.
	for i := range out {
		lines, err := s.blockLines(ctx, out[i].BlockID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}

func (s *Store) blockLines(ctx context.Context, blockID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT line FROM change_lines WHERE block_id = ? ORDER BY line_no ASC`, blockID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()
	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lines: %w", err)
	}
	return lines, nil
}

func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	switch table {
	case "runs", "change_blocks", "change_lines":
	default:
		return 0, fmt.Errorf("count rows: unknown table %q", table)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (model.Run, error) {
	var (
		run       model.Run
		startedAt string
		stoppedAt sql.NullString
	)
	if err := scanner.Scan(&run.RunID, &startedAt, &stoppedAt, &run.SessionInfoPath, &run.TelemetryPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Run{}, err
		}
		return model.Run{}, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if run.StartedAt, err = parseTS(startedAt); err != nil {
		return model.Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if stoppedAt.Valid {
		v, err := parseTS(stoppedAt.String)
		if err != nil {
			return model.Run{}, fmt.Errorf("parse stopped_at: %w", err)
		}
		run.StoppedAt = &v
	}
	return run, nil
}

func nullableTS(v *time.Time) any {
	if v == nil {
		return nil
	}
	return ts(*v)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func isUniqueErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsAny(msg,
		"UNIQUE constraint failed",
		"constraint failed: UNIQUE",
	)
}

func isForeignKeyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsAny(msg,
		"FOREIGN KEY constraint failed",
		"constraint failed: FOREIGN KEY",
	)
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
