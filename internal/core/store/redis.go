package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/core"
)

// DefaultRedisPrefix namespaces rate-limit keys.
const DefaultRedisPrefix = "visiprobe:ratelimit:"

// Redis counts windows with INCR and lets key expiry close them, so every
// process sharing the server shares one quota per identity.
type Redis struct {
	Client redis.UniversalClient
	Prefix string
	Window time.Duration
	Clock  func() time.Time
}

// NewRedis connects to the configured server and verifies it answers.
func NewRedis(ctx context.Context, cfg config.RedisConfig, window time.Duration) (*Redis, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{Client: client, Prefix: cfg.Prefix, Window: window}, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// CheckHealth pings the redis server.
func (r *Redis) CheckHealth(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrNotInitialized
	}
	return r.Client.Ping(ctx).Err()
}

// IncrementRateLimit counts one request and returns the window after it. The
// key expires when the window closes, which starts the next window.
func (r *Redis) IncrementRateLimit(ctx context.Context, identity string, window time.Duration) (*core.RateLimitState, error) {
	key, err := r.key(identity)
	if err != nil {
		return nil, err
	}

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err = r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("increment rate limit: %w", err)
	}

	count := incr.Val()
	ttl := pttl.Val()
	if count == 1 || ttl < 0 {
		if err := r.Client.PExpire(ctx, key, window).Err(); err != nil {
			return nil, fmt.Errorf("expire rate limit: %w", err)
		}
		ttl = window
	}

	return &core.RateLimitState{
		RequestCount: int(count),
		WindowStart:  r.now().Add(ttl - window),
	}, nil
}

func (r *Redis) GetRateLimit(ctx context.Context, identity string) (*core.RateLimitState, error) {
	key, err := r.key(identity)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, key)
}

func (r *Redis) UpdateRateLimit(ctx context.Context, identity string, state *core.RateLimitState) error {
	key, err := r.key(identity)
	if err != nil {
		return err
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}

	remaining := state.ExpiresAt(r.window()).Sub(r.now())
	if remaining <= 0 {
		return r.Client.Del(ctx, key).Err()
	}
	if err := r.Client.Set(ctx, key, state.RequestCount, remaining).Err(); err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}
	return nil
}

func (r *Redis) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	keys, err := r.matchingKeys(ctx, q)
	if err != nil {
		return nil, err
	}

	entries := []RateLimitEntry{}
	for _, key := range keys {
		state, err := r.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if state == nil {
			continue
		}
		entries = append(entries, RateLimitEntry{Identity: strings.TrimPrefix(key, r.prefix()), State: *state})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Identity < entries[j].Identity })
	return entries, nil
}

func (r *Redis) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	keys, err := r.matchingKeys(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := r.Client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return removed, nil
}

func (r *Redis) load(ctx context.Context, key string) (*core.RateLimitState, error) {
	raw, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("decode rate limit %q: %w", key, err)
	}

	ttl, err := r.Client.PTTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch rate limit ttl: %w", err)
	}
	window := r.window()
	if ttl < 0 {
		ttl = window
	}
	return &core.RateLimitState{RequestCount: count, WindowStart: r.now().Add(ttl - window)}, nil
}

func (r *Redis) matchingKeys(ctx context.Context, q RateLimitQuery) ([]string, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if identity := strings.TrimSpace(q.Identity); identity != "" && !q.All {
		return []string{r.prefix() + identity}, nil
	}

	pattern := r.prefix() + "*"
	if !q.All {
		pattern = r.prefix() + strings.TrimSpace(q.Prefix) + "*"
	}

	var keys []string
	iter := r.Client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan rate limits: %w", err)
	}
	return keys, nil
}

func (r *Redis) key(identity string) (string, error) {
	if r == nil || r.Client == nil {
		return "", ErrNotInitialized
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", ErrIdentityRequired
	}
	return r.prefix() + identity, nil
}

func (r *Redis) prefix() string {
	if r.Prefix == "" {
		return DefaultRedisPrefix
	}
	return r.Prefix
}

func (r *Redis) window() time.Duration {
	if r.Window > 0 {
		return r.Window
	}
	return time.Hour
}

func (r *Redis) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
