package dedupe_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/soak47/job-market-tracker/internal/dedupe"
)

func TestCacheClaim(t *testing.T) {
	ctx := context.Background()
	cache := dedupe.NewCache(10, time.Minute)

	ok, err := cache.Claim(ctx, "alpha", "job-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = cache.Claim(ctx, "alpha", "job-1")
	require.NoError(t, err)
	require.True(t, ok, "same id may claim its own key again")

	ok, err = cache.Claim(ctx, "alpha", "job-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	cache := dedupe.NewCache(10, 20*time.Millisecond)

	ok, _ := cache.Claim(ctx, "beta", "job-1")
	require.True(t, ok)
	time.Sleep(25 * time.Millisecond)

	ok, _ = cache.Claim(ctx, "beta", "job-2")
	require.True(t, ok)
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	cache := dedupe.NewCache(1, time.Minute)

	_, _ = cache.Claim(ctx, "first", "job-1")
	_, _ = cache.Claim(ctx, "second", "job-2")
	require.Equal(t, 1, cache.Len())

	ok, _ := cache.Claim(ctx, "first", "job-3")
	require.True(t, ok, "evicted key is free again")

	ok, _ = cache.Claim(ctx, "first", "job-4")
	require.False(t, ok)
}

func TestCacheRefreshKeepsKey(t *testing.T) {
	ctx := context.Background()
	cache := dedupe.NewCache(2, time.Minute)

	_, _ = cache.Claim(ctx, "a", "job-a")
	_, _ = cache.Claim(ctx, "b", "job-b")
	_, _ = cache.Claim(ctx, "a", "job-a")
	_, _ = cache.Claim(ctx, "c", "job-c")

	require.Equal(t, 2, cache.Len())
	ok, _ := cache.Claim(ctx, "a", "other")
	require.False(t, ok, "refreshed key survives eviction")
}

func TestCacheManyKeys(t *testing.T) {
	ctx := context.Background()
	cache := dedupe.NewCache(100, time.Minute)
	for i := 0; i < 250; i++ {
		ok, err := cache.Claim(ctx, fmt.Sprintf("k%d", i), "id")
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, 100, cache.Len())
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := dedupe.NewRedisStore("not a url", time.Hour)
	require.Error(t, err)
}

func TestRedisStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := dedupe.NewRedisStoreWithClient(client, time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	var _ dedupe.Store = store

	ok, err := store.Claim(context.Background(), "k", "id")
	require.Error(t, err)
	require.False(t, ok)
}

func TestNewPicksBackend(t *testing.T) {
	s, err := dedupe.New(context.Background(), "", 10, time.Hour)
	require.NoError(t, err)
	require.IsType(t, &dedupe.Cache{}, s)

	_, err = dedupe.New(context.Background(), "redis://127.0.0.1:1/0?dial_timeout=50ms&max_retries=-1", 10, time.Hour)
	require.ErrorContains(t, err, "ping redis")
}
