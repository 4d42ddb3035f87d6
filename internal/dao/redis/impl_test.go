package redis

import (
	"context"
	"testing"
	"time"

	"employee_chat_server/pkg/errorx"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

func TestStringOps(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	v, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, v)

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	v, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	mr.FastForward(2 * time.Minute)
	v, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestDeleteByPattern(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "dir:team:1:members", "x", 0))
	require.NoError(t, cache.Set(ctx, "dir:team:1:info", "x", 0))
	require.NoError(t, cache.Set(ctx, "dir:team:2:members", "x", 0))

	require.NoError(t, cache.DeleteByPattern(ctx, "dir:team:1:*"))
	require.False(t, mr.Exists("dir:team:1:members"))
	require.False(t, mr.Exists("dir:team:1:info"))
	require.True(t, mr.Exists("dir:team:2:members"))

	require.NoError(t, cache.Delete(ctx, "dir:team:2:members"))
	require.NoError(t, cache.Delete(ctx, "dir:team:2:members"))
}

func TestCacheErrorCode(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "k")
	require.Equal(t, errorx.CodeCacheError, errorx.GetCode(err))
}
