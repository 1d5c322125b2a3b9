package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/visiprobe/visiprobe/internal/core"
)

// RateLimitEntry is one identity's stored window.
type RateLimitEntry struct {
	Identity string              `json:"identity"`
	State    core.RateLimitState `json:"state"`
}

// RateLimitQuery selects entries by exact identity, identity prefix, or all.
// Identity wins over Prefix when both are set.
type RateLimitQuery struct {
	All      bool
	Identity string
	Prefix   string
}

// RateLimitAdmin inspects and clears stored windows. The libsql and redis
// backends implement it; the in-process memory backend does not.
type RateLimitAdmin interface {
	ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error)
	ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error)
}

var errEmptyQuery = errors.New("must specify --all, --identity, or --prefix")

func (q RateLimitQuery) Validate() error {
	if q.All || strings.TrimSpace(q.Identity) != "" || strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errEmptyQuery
}

// Matches reports whether identity is selected by q.
func (q RateLimitQuery) Matches(identity string) bool {
	switch {
	case q.All:
		return true
	case strings.TrimSpace(q.Identity) != "":
		return identity == strings.TrimSpace(q.Identity)
	case strings.TrimSpace(q.Prefix) != "":
		return strings.HasPrefix(identity, strings.TrimSpace(q.Prefix))
	}
	return false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// where renders q as a SQL filter. Prefix wildcards are escaped so an IPv6
// or underscore-bearing identity prefix matches literally.
func (q RateLimitQuery) where() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	switch {
	case q.All:
		return "", nil, nil
	case strings.TrimSpace(q.Identity) != "":
		return "WHERE identity = ?", []any{strings.TrimSpace(q.Identity)}, nil
	default:
		return `WHERE identity LIKE ? ESCAPE '\'`, []any{likeEscaper.Replace(strings.TrimSpace(q.Prefix)) + "%"}, nil
	}
}

func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	where, args, err := q.where()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT identity, request_count, window_start
		FROM rate_limits
		%s
		ORDER BY identity`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // read-only cursor

	entries := []RateLimitEntry{}
	for rows.Next() {
		var (
			entry   RateLimitEntry
			count   int
			startMs int64
		)
		if err := rows.Scan(&entry.Identity, &count, &startMs); err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		entry.State = window(count, startMs)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	return entries, nil
}

func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	db, err := s.db()
	if err != nil {
		return 0, err
	}
	where, args, err := q.where()
	if err != nil {
		return 0, err
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rate_limits "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	db, err := s.db()
	if err != nil {
		return 0, err
	}
	where, args, err := q.where()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, "DELETE FROM rate_limits "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return result.RowsAffected()
}

// PruneRateLimits deletes windows that opened before cutoff.
func (s *Store) PruneRateLimits(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := s.db()
	if err != nil {
		return 0, err
	}
	result, err := db.ExecContext(ctx, `DELETE FROM rate_limits WHERE window_start < ?`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune rate limits: %w", err)
	}
	return result.RowsAffected()
}
