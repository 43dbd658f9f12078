package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/tickerwatch/pkg/credstore"
	credredis "github.com/aussiebroadwan/tickerwatch/pkg/credstore/drivers/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStoreGetSetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr, rdb := newTestRedis(t)
	store := credredis.NewStore(rdb, "")

	require.NoError(t, store.Ping(ctx))

	_, err := store.Get(ctx, credstore.KeyAccessToken)
	require.ErrorIs(t, err, credstore.ErrNotFound)

	require.NoError(t, store.Set(ctx, credstore.KeyAccessToken, "tok"))
	require.True(t, mr.Exists(credredis.DefaultPrefix+credstore.KeyAccessToken))

	value, err := store.Get(ctx, credstore.KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, "tok", value)

	require.NoError(t, store.Delete(ctx, credstore.KeyAccessToken))
	require.NoError(t, store.Delete(ctx, credstore.KeyAccessToken))
	require.False(t, mr.Exists(credredis.DefaultPrefix+credstore.KeyAccessToken))
}

func TestStoreHonoursPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr, rdb := newTestRedis(t)
	store := credredis.NewStore(rdb, "alice:")

	require.NoError(t, store.Set(ctx, credstore.KeyUser, `{"id":"1"}`))
	require.True(t, mr.Exists("alice:"+credstore.KeyUser))
	require.False(t, mr.Exists(credredis.DefaultPrefix+credstore.KeyUser))
}

func TestStoreSurfacesServerFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr, rdb := newTestRedis(t)
	store := credredis.NewStore(rdb, "")
	mr.Close()

	err := store.Set(ctx, credstore.KeyAccessToken, "tok")
	require.Error(t, err)
	require.NotErrorIs(t, err, credstore.ErrNotFound)
}
