package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
)

func TestParseHotKey(t *testing.T) {
	hk, ok := parseHotKey("like:post-1")
	require.True(t, ok)
	assert.Equal(t, HotKey{TargetID: "post-1", Kind: domain.KindLike}, hk)

	hk, ok = parseHotKey("follow:ns:user-1")
	require.True(t, ok)
	assert.Equal(t, "ns:user-1", hk.TargetID)

	_, ok = parseHotKey("poke:post-1")
	assert.False(t, ok)
	_, ok = parseHotKey("like:")
	assert.False(t, ok)
	_, ok = parseHotKey("garbage")
	assert.False(t, ok)
}

func TestCounterKey(t *testing.T) {
	assert.Equal(t, "interaction:count:like:post-1", counterKey("post-1", domain.KindLike))
}

// newTestStore connects to the Redis at REDIS_ADDR and uses DB 15.
func newTestStore(t *testing.T) *RedisCounterStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())

	s := NewRedisCounterStoreFromClient(client, time.Minute)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisCounterStoreVersionGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.GetCount(ctx, "post-1", domain.KindLike)
	require.NoError(t, err)
	assert.False(t, found)

	written, err := s.SetCountIfNewer(ctx, domain.CounterAggregate{TargetID: "post-1", Kind: domain.KindLike, Value: 5, Version: 5})
	require.NoError(t, err)
	assert.True(t, written)

	// An older writer must not regress the cache.
	written, err = s.SetCountIfNewer(ctx, domain.CounterAggregate{TargetID: "post-1", Kind: domain.KindLike, Value: 4, Version: 4})
	require.NoError(t, err)
	assert.False(t, written)

	agg, found, err := s.GetCount(ctx, "post-1", domain.KindLike)
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 5, agg.Value)
	assert.EqualValues(t, 5, agg.Version)

	require.NoError(t, s.SetCount(ctx, domain.CounterAggregate{TargetID: "post-1", Kind: domain.KindLike, Value: 1, Version: 1}))
	agg, _, err = s.GetCount(ctx, "post-1", domain.KindLike)
	require.NoError(t, err)
	assert.EqualValues(t, 1, agg.Value)

	require.NoError(t, s.Invalidate(ctx, "post-1", domain.KindLike))
	_, found, err = s.GetCount(ctx, "post-1", domain.KindLike)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCounterStoreHotKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordAccess(ctx, "post-1", domain.KindLike))
	}
	require.NoError(t, s.RecordAccess(ctx, "user-1", domain.KindFollow))

	keys, err := s.GetTopHotKeys(ctx, 10)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, HotKey{TargetID: "post-1", Kind: domain.KindLike}, keys[0])

	require.NoError(t, s.ResetHotKeyScores(ctx))
	keys, err = s.GetTopHotKeys(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
