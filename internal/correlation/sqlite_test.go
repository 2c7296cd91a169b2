package correlation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "correlation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	entry := sampleEntry("row-1")
	require.NoError(t, store.Put(ctx, entry))

	got, ok, err := store.Get(ctx, "row-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, got)

	require.NoError(t, store.Delete(ctx, "row-1"))

	_, ok, err = store.Get(ctx, "row-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreFirstKeyOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	_, ok, err := store.FirstKey(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, sampleEntry("row-1")))
	require.NoError(t, store.Put(ctx, sampleEntry("row-2")))

	key, ok, err := store.FirstKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "row-1", key)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "correlation.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, sampleEntry("row-1")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "row-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "C123", got.Channel)
}
