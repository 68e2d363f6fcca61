package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stats struct {
	Count int `json:"count"`
}

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "invoices", time.Minute), mr
}

func TestVersionedFetchCachesUntilBump(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return stats{Count: calls}, nil
	}

	key, err := c.BuildKey(ctx, "ar", "stats")
	require.NoError(t, err)
	require.Equal(t, "ar:stats:v1", key)

	var got stats
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, got.Count)

	require.NoError(t, c.Bump(ctx))
	key, err = c.BuildKey(ctx, "ar", "stats")
	require.NoError(t, err)
	require.Equal(t, "ar:stats:v2", key)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 2, calls)
	require.Equal(t, 2, got.Count)
}

func TestVersionedLoaderErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	boom := errors.New("boom")

	var got stats
	err := c.FetchJSON(ctx, "k", &got, func(context.Context) (interface{}, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("k"))
}

func TestVersionedSubscribeReceivesBumps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, _ := newTestCache(t)

	got := make(chan int64, 1)
	require.NoError(t, c.Subscribe(ctx, func(v int64) { got <- v }))
	require.NoError(t, c.Bump(ctx))

	select {
	case v := <-got:
		require.Equal(t, int64(1), v)
	case <-time.After(2 * time.Second):
		t.Fatal("no bump received")
	}
}

func TestNilVersionedFallsThroughToLoader(t *testing.T) {
	var c *Versioned
	var got stats
	err := c.FetchJSON(context.Background(), "k", &got, func(context.Context) (interface{}, error) {
		return stats{Count: 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, got.Count)
	require.NoError(t, c.Bump(context.Background()))
}
