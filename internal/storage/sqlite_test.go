package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	db, err := OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?;", "command_log").Scan(&name)
	require.NoError(t, err, "command_log table missing")
}

func TestJournalRecordAndRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, err := OpenJournal(ctx, filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []CommandRecord{
		{ID: "c1", Engine: "classical", Kind: "move", Payload: "uci", EnqueuedAt: base, StartedAt: base, CompletedAt: base.Add(time.Millisecond)},
		{ID: "c2", Engine: "neural", Kind: "weights", PayloadBytes: 1024, EnqueuedAt: base, StartedAt: base, CompletedAt: base.Add(2 * time.Second)},
		{ID: "c3", Kind: "shutdown", EnqueuedAt: base, StartedAt: base, CompletedAt: base},
	}
	for _, rec := range recs {
		require.NoError(t, j.Record(ctx, rec))
	}

	all, err := j.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c3", all[0].ID, "newest first")
	assert.Equal(t, "", all[0].Engine)
	assert.Equal(t, 2*time.Second, all[1].Duration())
	assert.Equal(t, 1024, all[1].PayloadBytes)

	neural, err := j.Recent(ctx, "neural", 10)
	require.NoError(t, err)
	require.Len(t, neural, 1)
	assert.Equal(t, "c2", neural[0].ID)

	limited, err := j.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestJournalRejectsDuplicateAndEmptyIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, err := OpenJournal(ctx, filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	now := time.Now()
	rec := CommandRecord{ID: "dup", Kind: "move", EnqueuedAt: now, StartedAt: now, CompletedAt: now}
	require.NoError(t, j.Record(ctx, rec))
	assert.Error(t, j.Record(ctx, rec))

	rec.ID = ""
	assert.Error(t, j.Record(ctx, rec))
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	assert.ErrorIs(t, j.Record(context.Background(), CommandRecord{ID: "x"}), ErrJournalClosed)
	_, err := j.Recent(context.Background(), "", 1)
	assert.ErrorIs(t, err, ErrJournalClosed)
	assert.NoError(t, j.Close())
}
