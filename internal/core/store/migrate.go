package store

import (
	"context"
	"fmt"
)

// migrations are applied in order; entry i moves the schema to version i+1,
// recorded in PRAGMA user_version.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS rate_limits (
			identity TEXT PRIMARY KEY,
			request_count INTEGER NOT NULL DEFAULT 0,
			window_start INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_limits_window ON rate_limits(window_start)`,
	},
	{
		`ALTER TABLE rate_limits ADD COLUMN updated_at INTEGER`,
	},
}

// SchemaVersion is the version Migrate brings a database to.
var SchemaVersion = len(migrations)

// Migrate applies the migrations the database has not seen yet. A database
// already at or past SchemaVersion is left alone.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}

	var current int
	if err := s.DB.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for version := current; version < len(migrations); version++ {
		for _, stmt := range migrations[version] {
			if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate schema to v%d: %w", version+1, err)
			}
		}
		if _, err := s.DB.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, version+1)); err != nil {
			return fmt.Errorf("record schema v%d: %w", version+1, err)
		}
	}
	return nil
}
