package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crbraun/irsdkrec/internal/db"
	"github.com/crbraun/irsdkrec/internal/model"
)

func NewStore(t *testing.T) (*db.Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	store, err := db.Open(ctx, filepath.Join(t.TempDir(), "irsdkrec-test.db"))
	require.NoError(t, err, "open test store")
	t.Cleanup(func() {
		_ = store.Close()
	})
	require.NoError(t, db.ApplyMigrations(ctx, store.DB()), "apply migrations")
	return store, ctx
}

// SeedRun inserts an open run so blocks can be appended to it.
func SeedRun(t *testing.T, store *db.Store, ctx context.Context, runID string) model.Run {
	t.Helper()
	run := model.Run{
		RunID:           runID,
		StartedAt:       time.Now().UTC(),
		SessionInfoPath: "SessionInfo.txt",
		TelemetryPath:   "TelemetryData.txt",
	}
	require.NoError(t, store.InsertRun(ctx, run), "seed run")
	return run
}
