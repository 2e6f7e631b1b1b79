package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCache_LoadsThrough(t *testing.T) {
	var c *Cache
	var calls int32
	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("png"), nil
	}
	for i := 0; i < 2; i++ {
		b, err := c.GetOrLoad(context.Background(), "u1", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), b)
	}
	assert.EqualValues(t, 2, calls)
	assert.NoError(t, c.Delete(context.Background(), "u1"))
	assert.NoError(t, c.Close())
}

func TestUnreachableRedis_FallsBackToLoad(t *testing.T) {
	c := &Cache{RDB: redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}), prefix: "avatar:"}
	defer c.Close()

	b, err := c.GetOrLoad(context.Background(), "u1", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("png"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), b)

	_, err = c.GetOrLoad(context.Background(), "u2", time.Minute, func(context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func newMiniCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0, "avatar:")
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestGetOrLoad_FillsAndServesFromRedis(t *testing.T) {
	c, mr := newMiniCache(t)
	ctx := context.Background()
	var calls int32
	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("png"), nil
	}
	for i := 0; i < 3; i++ {
		b, err := c.GetOrLoad(ctx, "u1", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), b)
	}
	assert.EqualValues(t, 1, calls)
	got, err := mr.Get("avatar:u1")
	require.NoError(t, err)
	assert.Equal(t, "png", got)
	assert.Equal(t, time.Minute, mr.TTL("avatar:u1"))

	require.NoError(t, c.Delete(ctx, "u1"))
	assert.False(t, mr.Exists("avatar:u1"))
	_, err = c.GetOrLoad(ctx, "u1", time.Minute, load)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)
}

func TestGetOrLoad_DeleteDuringLoadSkipsFill(t *testing.T) {
	c, mr := newMiniCache(t)
	ctx := context.Background()

	// 回源读到旧数据的同时写路径完成了失效
	b, err := c.GetOrLoad(ctx, "u1", time.Minute, func(ctx context.Context) ([]byte, error) {
		require.NoError(t, c.Delete(ctx, "u1"))
		return []byte("old"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), b)
	assert.False(t, mr.Exists("avatar:u1"))

	b, err = c.GetOrLoad(ctx, "u1", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("new"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), b)
	got, err := mr.Get("avatar:u1")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}
