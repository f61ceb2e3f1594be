package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Integration is a stored OAuth credential. Token columns hold ciphertext.
type Integration struct {
	ID             string
	UserID         string
	Provider       string
	AccessToken    string
	RefreshToken   sql.NullString
	ExpiresAt      sql.NullTime
	Scopes         []string
	ConnectedEmail string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GetIntegration returns the credential for (user, provider), or nil if
// the provider is not connected.
func (s *Store) GetIntegration(ctx context.Context, userID, provider string) (*Integration, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at,
		       scopes, connected_email, created_at, updated_at
		FROM user_integrations WHERE user_id = ? AND provider = ?`,
		userID, provider)

	integ, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	return integ, nil
}

// ListIntegrations returns every connected provider for a user.
func (s *Store) ListIntegrations(ctx context.Context, userID string) ([]*Integration, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at,
		       scopes, connected_email, created_at, updated_at
		FROM user_integrations WHERE user_id = ? ORDER BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var out []*Integration
	for rows.Next() {
		integ, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("list integrations: %w", err)
		}
		out = append(out, integ)
	}
	return out, rows.Err()
}

// UpsertIntegrationParams carries a full credential write. Token fields
// must already be encrypted.
type UpsertIntegrationParams struct {
	UserID         string
	Provider       string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
	Scopes         []string
	ConnectedEmail string
}

// UpsertIntegration writes a credential in a single statement, replacing
// any existing row for (user, provider).
func (s *Store) UpsertIntegration(ctx context.Context, p UpsertIntegrationParams) error {
	scopes, err := json.Marshal(p.Scopes)
	if err != nil {
		return fmt.Errorf("encode scopes: %w", err)
	}

	refresh := sql.NullString{String: p.RefreshToken, Valid: p.RefreshToken != ""}
	expires := sql.NullTime{Time: p.ExpiresAt, Valid: !p.ExpiresAt.IsZero()}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO user_integrations
			(id, user_id, provider, access_token, refresh_token, expires_at,
			 scopes, connected_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token    = excluded.access_token,
			refresh_token   = excluded.refresh_token,
			expires_at      = excluded.expires_at,
			scopes          = excluded.scopes,
			connected_email = excluded.connected_email,
			updated_at      = CURRENT_TIMESTAMP`,
		uuid.NewString(), p.UserID, p.Provider, p.AccessToken, refresh, expires,
		string(scopes), p.ConnectedEmail)
	if err != nil {
		return fmt.Errorf("upsert integration: %w", err)
	}
	return nil
}

// UpdateTokensParams carries the fields rewritten by a refresh exchange.
type UpdateTokensParams struct {
	UserID       string
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// UpdateTokens rewrites the token columns after a refresh. An empty
// RefreshToken keeps the stored one (providers that don't rotate).
func (s *Store) UpdateTokens(ctx context.Context, p UpdateTokensParams) error {
	expires := sql.NullTime{Time: p.ExpiresAt, Valid: !p.ExpiresAt.IsZero()}

	_, err := s.conn.ExecContext(ctx, `
		UPDATE user_integrations SET
			access_token  = ?,
			refresh_token = CASE WHEN ? != '' THEN ? ELSE refresh_token END,
			expires_at    = ?,
			updated_at    = CURRENT_TIMESTAMP
		WHERE user_id = ? AND provider = ?`,
		p.AccessToken, p.RefreshToken, p.RefreshToken, expires,
		p.UserID, p.Provider)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	return nil
}

// DeleteIntegration removes the credential for (user, provider). Deleting
// a provider that isn't connected is not an error.
func (s *Store) DeleteIntegration(ctx context.Context, userID, provider string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM user_integrations WHERE user_id = ? AND provider = ?`,
		userID, provider)
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row rowScanner) (*Integration, error) {
	var integ Integration
	var scopes string
	err := row.Scan(&integ.ID, &integ.UserID, &integ.Provider, &integ.AccessToken,
		&integ.RefreshToken, &integ.ExpiresAt, &scopes, &integ.ConnectedEmail,
		&integ.CreatedAt, &integ.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scopes != "" {
		if err := json.Unmarshal([]byte(scopes), &integ.Scopes); err != nil {
			return nil, fmt.Errorf("decode scopes: %w", err)
		}
	}
	return &integ, nil
}
