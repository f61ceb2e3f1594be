// Package session implements conversation history listing and deletion.
package session

import (
	"context"
	"time"

	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/types"
)

type SessionLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSessionLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SessionLogic {
	return &SessionLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// List returns the user's sessions, most recently active first.
func (l *SessionLogic) List(userID string) (*types.SessionListResponse, error) {
	sessions, err := l.svcCtx.DB.ListSessions(l.ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]types.Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, types.Session{
			ID:        s.ID,
			Title:     s.Title,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &types.SessionListResponse{Sessions: out}, nil
}

// Messages returns a session's turns after verifying ownership.
func (l *SessionLogic) Messages(userID, sessionID string) (*types.MessageListResponse, error) {
	if _, err := l.svcCtx.DB.GetSession(l.ctx, userID, sessionID); err != nil {
		return nil, err
	}

	messages, err := l.svcCtx.DB.ListMessages(l.ctx, sessionID)
	if err != nil {
		return nil, err
	}

	out := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, types.Message{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &types.MessageListResponse{SessionID: sessionID, Messages: out}, nil
}

// Delete removes a session and its messages.
func (l *SessionLogic) Delete(userID, sessionID string) error {
	return l.svcCtx.DB.DeleteSession(l.ctx, userID, sessionID)
}
