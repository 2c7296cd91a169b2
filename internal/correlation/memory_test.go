package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry(key string) Entry {
	return Entry{
		Key:           key,
		Channel:       "C123",
		ThreadAnchor:  "1700000000.000100",
		PlaceholderTS: "1700000000.000200",
		SubjectURL:    "https://linkedin.com/in/jane-doe",
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

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

func TestMemoryStoreDeleteAbsentKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	assert.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestMemoryStoreFirstKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.FirstKey(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty store has no first key")

	require.NoError(t, store.Put(ctx, sampleEntry("row-1")))
	require.NoError(t, store.Put(ctx, sampleEntry("row-2")))

	key, ok, err := store.FirstKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "row-1", key)

	require.NoError(t, store.Delete(ctx, "row-1"))

	key, ok, err = store.FirstKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "row-2", key)
}

func TestFallbackKey(t *testing.T) {
	assert.Equal(t, "C123:1700.0002", FallbackKey("C123", "1700.0002"))
}
