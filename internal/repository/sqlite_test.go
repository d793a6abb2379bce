package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arcanechess/arcane-server-go/internal/config"
)

func openTestStore(t *testing.T) *SQLiteResultStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteSaveAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"g1", "g2", "g3"} {
		require.NoError(t, store.SaveResult(ctx, MatchResult{
			GameID:        id,
			WhitePlayerID: "alice",
			BlackPlayerID: "bob",
			Status:        "CHECKMATE",
			Winner:        "W",
			WinReason:     "Checkmate",
			Fullmoves:     20 + i,
			StartedAt:     base,
			EndedAt:       base.Add(time.Duration(i) * time.Minute),
		}))
	}

	results, err := store.RecentResults(ctx, "bob", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "g3", results[0].GameID)
	assert.Equal(t, "g2", results[1].GameID)
	assert.Equal(t, base.Add(2*time.Minute), results[0].EndedAt)

	none, err := store.RecentResults(ctx, "carol", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteSaveIsUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	r := MatchResult{GameID: "g1", WhitePlayerID: "a", BlackPlayerID: "b", Status: "FORFEIT", Fullmoves: 3}
	require.NoError(t, store.SaveResult(ctx, r))

	r.Status = "TIMEOUT"
	require.NoError(t, store.SaveResult(ctx, r))

	results, err := store.RecentResults(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "TIMEOUT", results[0].Status)
}

func TestSQLiteRejectsEmptyGameID(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.SaveResult(context.Background(), MatchResult{}))
}

func TestOpenDispatch(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	store, err := Open(ctx, config.DatabaseConfig{Driver: "none"}, logger)
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, store)

	path := filepath.Join(t.TempDir(), "results.db")
	store, err = Open(ctx, config.DatabaseConfig{Driver: "sqlite", URL: path}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteResultStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, config.DatabaseConfig{Driver: "mongo"}, logger)
	assert.Error(t, err)
}
