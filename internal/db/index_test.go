package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestIndexBaselineUtility(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "idx.db")
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	require.NoError(t, ApplyMigrations(ctx, db))
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, _ = db.ExecContext(ctx, `INSERT INTO runs(run_id, started_at) VALUES('r1', ?)`, now)
	_, _ = db.ExecContext(ctx, `INSERT INTO change_blocks(block_id, run_id, stream, seq, session_num, session_time, tick, recorded_at) VALUES('b1','r1','telemetry',1,0,0,0,?)`, now)

	requirePlanUsesIndex(t, db, `EXPLAIN QUERY PLAN SELECT * FROM runs ORDER BY started_at DESC LIMIT 10`, "runs_started_at")
	requirePlanUsesIndex(t, db, `EXPLAIN QUERY PLAN SELECT * FROM change_blocks WHERE stream='telemetry' ORDER BY recorded_at DESC LIMIT 10`, "change_blocks_stream_recorded_at")
}

func requirePlanUsesIndex(t *testing.T, db *sql.DB, query, expectedIndex string) {
	t.Helper()
	rows, err := db.Query(query)
	require.NoError(t, err)
	defer rows.Close()

	var details []string
	for rows.Next() {
		var id, parent, notused int
		var detail string
		require.NoError(t, rows.Scan(&id, &parent, &notused, &detail))
		details = append(details, detail)
	}
	require.NoError(t, rows.Err())
	require.Contains(t, strings.Join(details, "\n"), expectedIndex)
}
