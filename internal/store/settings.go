package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetSetting returns the value for key, or ok=false if the key is unset.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.withRetry(ctx, "get setting", func(ctx context.Context, conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("GetSetting %s: %w", key, err)
	}
	return value, true, nil
}

// UpdateSetting upserts one setting.
func (s *Store) UpdateSetting(ctx context.Context, key, value string) error {
	err := s.withRetry(ctx, "update setting", func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO settings (key, value)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value,
			    updated_at = CURRENT_TIMESTAMP`,
			key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("UpdateSetting %s: %w", key, err)
	}
	return nil
}
