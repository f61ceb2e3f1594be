package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UserSettings holds per-user assistant preferences. The Fireflies API
// key column stores ciphertext; callers decrypt.
type UserSettings struct {
	UserID          string
	AssistantName   string
	Personality     string
	Timezone        string
	FirefliesAPIKey string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GetSettings returns the settings row for a user, or nil if none exists.
func (s *Store) GetSettings(ctx context.Context, userID string) (*UserSettings, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT user_id, assistant_name, personality, timezone, fireflies_api_key,
		       created_at, updated_at
		FROM user_settings WHERE user_id = ?`, userID)

	var us UserSettings
	err := row.Scan(&us.UserID, &us.AssistantName, &us.Personality, &us.Timezone,
		&us.FirefliesAPIKey, &us.CreatedAt, &us.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &us, nil
}

// UpsertSettingsParams carries the updatable settings fields. Nil fields
// keep the stored value.
type UpsertSettingsParams struct {
	UserID        string
	AssistantName *string
	Personality   *string
	Timezone      *string
}

// UpsertSettings creates or updates a user's preference fields without
// touching the Fireflies key column.
func (s *Store) UpsertSettings(ctx context.Context, p UpsertSettingsParams) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, assistant_name, personality, timezone)
		VALUES (?, COALESCE(?, ''), COALESCE(?, ''), COALESCE(?, ''))
		ON CONFLICT (user_id) DO UPDATE SET
			assistant_name = COALESCE(excluded.assistant_name, assistant_name),
			personality    = COALESCE(excluded.personality, personality),
			timezone       = COALESCE(excluded.timezone, timezone),
			updated_at     = CURRENT_TIMESTAMP`,
		p.UserID, p.AssistantName, p.Personality, p.Timezone)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// SetFirefliesKey stores the (already encrypted) Fireflies API key. An
// empty value clears the key.
func (s *Store) SetFirefliesKey(ctx context.Context, userID, encryptedKey string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, fireflies_api_key)
		VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			fireflies_api_key = excluded.fireflies_api_key,
			updated_at        = CURRENT_TIMESTAMP`,
		userID, encryptedKey)
	if err != nil {
		return fmt.Errorf("set fireflies key: %w", err)
	}
	return nil
}
