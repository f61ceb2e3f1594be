package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session id doesn't exist or
// belongs to another user.
var ErrSessionNotFound = errors.New("session not found")

// ChatSession is one conversation.
type ChatSession struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is one turn in a conversation.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	TokensIn  int64
	TokensOut int64
	CreatedAt time.Time
}

// CreateSession creates a new conversation for a user.
func (s *Store) CreateSession(ctx context.Context, userID, title string) (*ChatSession, error) {
	sess := &ChatSession{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
	}
	err := s.conn.QueryRowContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, title)
		VALUES (?, ?, ?)
		RETURNING created_at, updated_at`,
		sess.ID, sess.UserID, sess.Title).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// GetSession returns a session owned by userID, or ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, userID, sessionID string) (*ChatSession, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE id = ? AND user_id = ?`, sessionID, userID)

	var sess ChatSession
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// ListSessions returns a user's sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]*ChatSession, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*ChatSession
	for rows.Next() {
		var sess ChatSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title,
			&sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// TouchSession bumps a session's updated_at so it sorts to the top.
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// DeleteSession removes a session owned by userID along with its
// messages. Returns ErrSessionNotFound if nothing matched.
func (s *Store) DeleteSession(ctx context.Context, userID, sessionID string) error {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE id = ? AND user_id = ?`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CreateMessageParams carries one stored chat turn.
type CreateMessageParams struct {
	SessionID string
	Role      string
	Content   string
	TokensIn  int64
	TokensOut int64
}

// CreateMessage appends a message to a session.
func (s *Store) CreateMessage(ctx context.Context, p CreateMessageParams) (*ChatMessage, error) {
	msg := &ChatMessage{
		ID:        uuid.NewString(),
		SessionID: p.SessionID,
		Role:      p.Role,
		Content:   p.Content,
		TokensIn:  p.TokensIn,
		TokensOut: p.TokensOut,
	}
	err := s.conn.QueryRowContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, tokens_in, tokens_out)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING created_at`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.TokensIn, msg.TokensOut).
		Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a session's messages in chronological order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]*ChatMessage, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, session_id, role, content, tokens_in, tokens_out, created_at
		FROM chat_messages WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*ChatMessage
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&msg.TokensIn, &msg.TokensOut, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}
