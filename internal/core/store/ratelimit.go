package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/visiprobe/visiprobe/internal/core"
)

// ErrIdentityRequired is returned for blank identities.
var ErrIdentityRequired = errors.New("identity is required")

// Windows are stored as Unix milliseconds.
const (
	selectWindow = `SELECT request_count, window_start
		FROM rate_limits
		WHERE identity = ?`
	upsertWindow = `INSERT INTO rate_limits (identity, request_count, window_start, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			request_count = excluded.request_count,
			window_start = excluded.window_start,
			updated_at = excluded.updated_at`
)

func (s *Store) db() (*sql.DB, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}
	return s.DB, nil
}

func window(count int, startMs int64) core.RateLimitState {
	return core.RateLimitState{RequestCount: count, WindowStart: time.UnixMilli(startMs).UTC()}
}

// GetRateLimit returns the stored window for identity, or nil when none exists.
func (s *Store) GetRateLimit(ctx context.Context, identity string) (*core.RateLimitState, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	if identity = strings.TrimSpace(identity); identity == "" {
		return nil, ErrIdentityRequired
	}

	var (
		count   int
		startMs int64
	)
	switch err := db.QueryRowContext(ctx, selectWindow, identity).Scan(&count, &startMs); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	state := window(count, startMs)
	return &state, nil
}

// UpdateRateLimit replaces the window for identity.
func (s *Store) UpdateRateLimit(ctx context.Context, identity string, state *core.RateLimitState) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	if identity = strings.TrimSpace(identity); identity == "" {
		return ErrIdentityRequired
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}

	now := time.Now().UTC().UnixMilli()
	if _, err := db.ExecContext(ctx, upsertWindow, identity, state.RequestCount, state.WindowStart.UTC().UnixMilli(), now); err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}
	return nil
}
