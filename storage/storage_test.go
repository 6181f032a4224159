package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-storefront/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStoreContract(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "jwtToken")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "jwtToken", "abc"))
	value, ok, err := store.Get(ctx, "jwtToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", value)

	require.NoError(t, store.Set(ctx, "jwtToken", "def"))
	value, _, err = store.Get(ctx, "jwtToken")
	require.NoError(t, err)
	assert.Equal(t, "def", value)

	require.NoError(t, store.Remove(ctx, "jwtToken"))
	_, ok, err = store.Get(ctx, "jwtToken")
	require.NoError(t, err)
	assert.False(t, ok)

	// removing a missing key is not an error
	require.NoError(t, store.Remove(ctx, "jwtToken"))

	assert.ErrorIs(t, store.Set(ctx, " ", "x"), storage.ErrEmptyKey)
}

func TestMemoryStore(t *testing.T) {
	store := storage.NewMemoryStore()
	runStoreContract(t, store)
	assert.Empty(t, store.Keys())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := storage.NewRedisStore(client, storage.WithRedisNamespace("shop"))
	runStoreContract(t, store)

	require.NoError(t, store.Set(context.Background(), "userRoles", `["USER"]`))
	assert.True(t, mr.Exists("shop:userRoles"))
}

func TestRedisStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := storage.NewRedisStore(client, storage.WithRedisTTL(time.Minute))
	require.NoError(t, store.Set(context.Background(), "jwtToken", "abc"))
	assert.Equal(t, time.Minute, mr.TTL("storefront:jwtToken"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := store.Get(context.Background(), "jwtToken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBunStore(t *testing.T) {
	db, err := storage.OpenSQLite("file::memory:?cache=shared")
	require.NoError(t, err)
	defer db.Close()

	store := storage.NewBunStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()), "migrate must be idempotent")

	runStoreContract(t, store)
}
