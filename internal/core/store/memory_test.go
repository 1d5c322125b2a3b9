package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/core"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	state, err := mem.GetRateLimit(ctx, "203.0.113.9")
	require.NoError(t, err)
	require.Nil(t, state)

	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, mem.UpdateRateLimit(ctx, "203.0.113.9", &core.RateLimitState{RequestCount: 2, WindowStart: start}))

	state, err = mem.GetRateLimit(ctx, "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, &core.RateLimitState{RequestCount: 2, WindowStart: start}, state)

	state.RequestCount = 99
	again, err := mem.GetRateLimit(ctx, "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, 2, again.RequestCount)
}

func TestMemoryRejectsBlankIdentity(t *testing.T) {
	mem := NewMemory()
	_, err := mem.GetRateLimit(context.Background(), " ")
	require.ErrorIs(t, err, ErrIdentityRequired)
	require.ErrorIs(t, mem.UpdateRateLimit(context.Background(), "", &core.RateLimitState{}), ErrIdentityRequired)
}

func TestMemorySweep(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mem := NewMemory()
	mem.Clock = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, mem.UpdateRateLimit(ctx, "old", &core.RateLimitState{RequestCount: 3, WindowStart: now.Add(-2 * time.Hour)}))
	require.NoError(t, mem.UpdateRateLimit(ctx, "fresh", &core.RateLimitState{RequestCount: 1, WindowStart: now.Add(-10 * time.Minute)}))

	require.Equal(t, 1, mem.Sweep(time.Hour))
	require.Equal(t, 1, mem.Len())

	state, err := mem.GetRateLimit(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, state)
}

func TestMemoryListAndReset(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	for _, id := range []string{"10.0.0.2", "10.0.0.1", "192.168.1.1"} {
		require.NoError(t, mem.UpdateRateLimit(ctx, id, &core.RateLimitState{RequestCount: 1, WindowStart: time.Now()}))
	}

	_, err := mem.ListRateLimits(ctx, RateLimitQuery{})
	require.Error(t, err)

	entries, err := mem.ListRateLimits(ctx, RateLimitQuery{Prefix: "10.0."})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "10.0.0.1", entries[0].Identity)

	removed, err := mem.ResetRateLimits(ctx, RateLimitQuery{Identity: "192.168.1.1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	removed, err = mem.ResetRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)
	require.Zero(t, mem.Len())
}

func TestMemoryRunSweeperStopsOnCancel(t *testing.T) {
	mem := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mem.RunSweeper(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
