package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, "test", time.Minute), mr
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	}

	key, err := c.BuildKey(ctx, "things", "a")
	require.NoError(t, err)
	require.Equal(t, "things:a:1", key)

	var out map[string]int
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, out["n"])
}

func TestBumpInvalidates(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	first, err := c.BuildKey(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx))
	second, err := c.BuildKey(ctx, "k")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var c *Cache
	var out string
	err := c.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) { return "v", nil })
	require.NoError(t, err)
	require.Equal(t, "v", out)
	require.NoError(t, c.Bump(context.Background()))
}

func TestNewRedisClientPing(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := New(context.Background(), addr, 0)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = New(context.Background(), addr, 0)
	require.Error(t, err)
}
