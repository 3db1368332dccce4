package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urlic/licenced/internal/storage"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordRequest(ctx, "t1", "verify", true, "", 12*time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.RecordRequest(ctx, "t2", "generate", false, "missing user_name", 3*time.Millisecond))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "t2", entries[0].CorrelationID)
	assert.Equal(t, "generate", entries[0].Method)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "missing user_name", entries[0].Message)

	assert.Equal(t, "t1", entries[1].CorrelationID)
	assert.True(t, entries[1].Success)
	assert.Equal(t, int64(12), entries[1].ElapsedMS)
	assert.NotEmpty(t, entries[1].ID)
	assert.False(t, entries[1].CreatedAt.IsZero())
}

func TestRecentLimit(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordRequest(ctx, "t", "verify", true, "", time.Millisecond))
	}

	entries, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRecentEmpty(t *testing.T) {
	t.Parallel()

	entries, err := testStore(t).Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
