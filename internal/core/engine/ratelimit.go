package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/core"
)

// RateLimiter enforces a fixed-window quota per caller identity.
type RateLimiter struct {
	Store  RateLimitStore
	Limit  RateLimit
	Clock  func() time.Time
	Logger *zap.Logger

	mu sync.Mutex
}

// RateLimit represents a rate limit window.
type RateLimit struct {
	RequestsPerWindow int           `mapstructure:"requests"`
	WindowDuration    time.Duration `mapstructure:"window"`
}

// DefaultLimit allows three scans per identity per hour.
var DefaultLimit = RateLimit{RequestsPerWindow: 3, WindowDuration: time.Hour}

// RateLimitStore stores rate limit state.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, identity string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, identity string, state *core.RateLimitState) error
}

// RateLimitIncrementer is implemented by stores that count atomically, so
// several processes can share one window.
type RateLimitIncrementer interface {
	IncrementRateLimit(ctx context.Context, identity string, window time.Duration) (*core.RateLimitState, error)
}

// Allow consumes one request from identity's window. When the window is full it
// returns false and the time until the window resets. The window opens on the
// first request and the first request after it closes opens a new one.
//
// Empty identities and store failures are allowed; a store failure is
// returned alongside allowed=true for the caller to log.
func (r *RateLimiter) Allow(ctx context.Context, identity string) (bool, time.Duration, error) {
	if r == nil || r.Store == nil {
		return true, 0, nil
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return true, 0, nil
	}

	limit := r.limit()
	if inc, ok := r.Store.(RateLimitIncrementer); ok {
		return r.allowAtomic(ctx, inc, identity, limit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	state, err := r.Store.GetRateLimit(ctx, identity)
	if err != nil {
		r.logStoreError(identity, err)
		return true, 0, err
	}
	if state == nil || state.WindowStart.IsZero() || now.After(state.ExpiresAt(limit.WindowDuration)) {
		state = &core.RateLimitState{WindowStart: now}
	}

	if state.RequestCount >= limit.RequestsPerWindow {
		return false, state.ExpiresAt(limit.WindowDuration).Sub(now), nil
	}

	state.RequestCount++
	if err := r.Store.UpdateRateLimit(ctx, identity, state); err != nil {
		r.logStoreError(identity, err)
		return true, 0, err
	}
	return true, 0, nil
}

func (r *RateLimiter) allowAtomic(ctx context.Context, inc RateLimitIncrementer, identity string, limit RateLimit) (bool, time.Duration, error) {
	state, err := inc.IncrementRateLimit(ctx, identity, limit.WindowDuration)
	if err != nil {
		r.logStoreError(identity, err)
		return true, 0, err
	}
	if state.RequestCount > limit.RequestsPerWindow {
		wait := state.ExpiresAt(limit.WindowDuration).Sub(r.now())
		if wait < 0 {
			wait = 0
		}
		return false, wait, nil
	}
	return true, 0, nil
}

func (r *RateLimiter) limit() RateLimit {
	limit := r.Limit
	if limit.RequestsPerWindow <= 0 {
		limit.RequestsPerWindow = DefaultLimit.RequestsPerWindow
	}
	if limit.WindowDuration <= 0 {
		limit.WindowDuration = DefaultLimit.WindowDuration
	}
	return limit
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *RateLimiter) logStoreError(identity string, err error) {
	if r.Logger == nil {
		return
	}
	r.Logger.Warn("rate limit store unavailable, allowing request",
		zap.String("identity", identity),
		zap.Error(err),
	)
}
