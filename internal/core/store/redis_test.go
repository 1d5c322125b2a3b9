package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/engine"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, &Redis{Client: client, Window: time.Hour}
}

func TestRedisIncrementOpensWindow(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	state, err := store.IncrementRateLimit(ctx, "203.0.113.9", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, state.RequestCount)
	require.WithinDuration(t, time.Now(), state.WindowStart, 5*time.Second)

	require.True(t, mr.Exists("visiprobe:ratelimit:203.0.113.9"))
	require.Equal(t, time.Hour, mr.TTL("visiprobe:ratelimit:203.0.113.9"))

	mr.FastForward(30 * time.Minute)
	state, err = store.IncrementRateLimit(ctx, "203.0.113.9", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, state.RequestCount)
	require.WithinDuration(t, time.Now().Add(-30*time.Minute), state.WindowStart, 5*time.Second)

	mr.FastForward(31 * time.Minute)
	state, err = store.IncrementRateLimit(ctx, "203.0.113.9", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, state.RequestCount)
}

func TestRedisIncrementRepairsMissingExpiry(t *testing.T) {
	mr, store := setupRedis(t)
	require.NoError(t, mr.Set("visiprobe:ratelimit:stuck", "2"))

	state, err := store.IncrementRateLimit(context.Background(), "stuck", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 3, state.RequestCount)
	require.Equal(t, time.Hour, mr.TTL("visiprobe:ratelimit:stuck"))
}

func TestRedisBacksLimiter(t *testing.T) {
	mr, store := setupRedis(t)
	limiter := &engine.RateLimiter{Store: store, Limit: engine.DefaultLimit}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(ctx, "203.0.113.9")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	mr.FastForward(15 * time.Minute)
	allowed, wait, err := limiter.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	require.False(t, allowed)
	require.InDelta(t, float64(45*time.Minute), float64(wait), float64(5*time.Second))

	allowed, _, err = limiter.Allow(ctx, "198.51.100.4")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRedisUnavailableFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	store := &Redis{Client: client}

	limiter := &engine.RateLimiter{Store: store}
	allowed, _, err := limiter.Allow(context.Background(), "203.0.113.9")
	require.Error(t, err)
	require.True(t, allowed)
}

func TestRedisUpdateAndList(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	start := time.Now().Add(-20 * time.Minute)
	require.NoError(t, store.UpdateRateLimit(ctx, "10.0.0.1", &core.RateLimitState{RequestCount: 2, WindowStart: start}))
	require.NoError(t, store.UpdateRateLimit(ctx, "10.0.0.2", &core.RateLimitState{RequestCount: 1, WindowStart: start}))
	require.NoError(t, store.UpdateRateLimit(ctx, "expired", &core.RateLimitState{RequestCount: 3, WindowStart: start.Add(-2 * time.Hour)}))
	require.False(t, mr.Exists("visiprobe:ratelimit:expired"))

	entries, err := store.ListRateLimits(ctx, RateLimitQuery{Prefix: "10.0."})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "10.0.0.1", entries[0].Identity)
	require.Equal(t, 2, entries[0].State.RequestCount)

	removed, err := store.ResetRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	removed, err = store.ResetRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestRedisGetRateLimit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	store := &Redis{Client: client, Window: time.Hour, Clock: func() time.Time { return now }}
	ctx := context.Background()
	key := "visiprobe:ratelimit:203.0.113.9"

	mock.ExpectGet(key).RedisNil()
	state, err := store.GetRateLimit(ctx, "203.0.113.9")
	require.NoError(t, err)
	require.Nil(t, state)

	mock.ExpectGet(key).SetVal("2")
	mock.ExpectPTTL(key).SetVal(45 * time.Minute)
	state, err = store.GetRateLimit(ctx, "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, 2, state.RequestCount)
	require.Equal(t, now.Add(-15*time.Minute), state.WindowStart)

	mock.ExpectGet(key).SetVal("not-a-number")
	_, err = store.GetRateLimit(ctx, "203.0.113.9")
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCustomPrefix(t *testing.T) {
	mr, store := setupRedis(t)
	store.Prefix = "test:rl:"

	_, err := store.IncrementRateLimit(context.Background(), "abc", time.Hour)
	require.NoError(t, err)
	require.True(t, mr.Exists("test:rl:abc"))
}

func TestNewRedisRequiresAddress(t *testing.T) {
	_, err := NewRedis(context.Background(), config.RedisConfig{}, time.Hour)
	require.Error(t, err)

	mr, _ := setupRedis(t)
	store, err := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestRedisCheckHealth(t *testing.T) {
	mr, store := setupRedis(t)
	require.NoError(t, store.CheckHealth(context.Background()))

	mr.SetError("LOADING")
	require.Error(t, store.CheckHealth(context.Background()))

	var missing *Redis
	require.ErrorIs(t, missing.CheckHealth(context.Background()), ErrNotInitialized)
}
