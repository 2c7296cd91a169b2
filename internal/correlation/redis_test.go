package correlation

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

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

func TestRedisStoreFirstKeyOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	_, ok, err := store.FirstKey(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

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

func TestRedisStoreRePutSameKey(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	require.NoError(t, store.Put(ctx, sampleEntry("row-1")))

	updated := sampleEntry("row-1")
	updated.SubjectURL = "https://linkedin.com/in/other"
	require.NoError(t, store.Put(ctx, updated))

	got, ok, err := store.Get(ctx, "row-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, updated, got)

	// The index holds a single occurrence of the key.
	key, ok, err := store.FirstKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "row-1", key)

	require.NoError(t, store.Delete(ctx, "row-1"))
	_, ok, err = store.FirstKey(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
