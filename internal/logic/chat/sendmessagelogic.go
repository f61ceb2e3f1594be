// Package chat implements the conversation endpoint's logic.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/db"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/orchestrator"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/tools"
	"github.com/adjutanthq/adjutant/internal/types"
)

// ErrEmptyMessage rejects chat requests with no message text.
var ErrEmptyMessage = errors.New("message is required")

const titleLimit = 50

type SendMessageLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSendMessageLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SendMessageLogic {
	return &SendMessageLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// SendMessage runs one user turn end to end: session handling,
// capability resolution, the tool loop, and best-effort persistence.
func (l *SendMessageLogic) SendMessage(userID string, req *types.ChatRequest) (*types.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	settings, err := l.svcCtx.DB.GetSettings(l.ctx, userID)
	if err != nil {
		l.Warnf("load settings: %v", err)
	}
	assistantName := l.svcCtx.Config.Assistant.DefaultName
	personality := ""
	timezone := l.svcCtx.Config.Assistant.DefaultTimezone
	if settings != nil {
		if settings.AssistantName != "" {
			assistantName = settings.AssistantName
		}
		personality = settings.Personality
		if settings.Timezone != "" {
			timezone = settings.Timezone
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		session, err := l.svcCtx.DB.CreateSession(l.ctx, userID, titleFromMessage(req.Message))
		if err != nil {
			return nil, err
		}
		sessionID = session.ID
	} else {
		if _, err := l.svcCtx.DB.GetSession(l.ctx, userID, sessionID); err != nil {
			return nil, err
		}
	}

	snapshot := l.svcCtx.Capabilities.Resolve(l.ctx, userID)

	system := ai.BuildSystemPrompt(ai.PromptOptions{
		AssistantName: assistantName,
		Personality:   personality,
		Timezone:      timezone,
		Capabilities:  snapshot.Summary(),
	})

	history := make([]ai.Message, 0, len(req.History))
	for _, msg := range req.History {
		role := ai.RoleUser
		if msg.Role == ai.RoleAssistant {
			role = ai.RoleAssistant
		}
		history = append(history, ai.Message{Role: role, Content: []ai.ContentBlock{ai.TextBlock(msg.Content)}})
	}
	images := make([]ai.ContentBlock, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, ai.ImageBlock(img.MediaType, img.Data))
	}

	result, err := l.svcCtx.Orchestrator.Run(l.ctx, &orchestrator.Request{
		UserID:  userID,
		History: history,
		Message: req.Message,
		Images:  images,
		System:  system,
		Tools:   snapshot.AllowedTools(l.svcCtx.Registry),
	})
	if err != nil {
		return nil, err
	}

	l.persist(sessionID, req.Message, result)

	return &types.ChatResponse{
		Content: result.Content,
		Usage: types.Usage{
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
		},
		SessionID: sessionID,
		ToolsUsed: result.ToolsUsed,
	}, nil
}

// persist saves the turn best-effort: the computed answer is returned
// even when storage fails.
func (l *SendMessageLogic) persist(sessionID, userMessage string, result *orchestrator.Response) {
	if _, err := l.svcCtx.DB.CreateMessage(l.ctx, db.CreateMessageParams{
		SessionID: sessionID,
		Role:      "user",
		Content:   userMessage,
	}); err != nil {
		l.Errorf("save user message: %v", err)
	}

	if _, err := l.svcCtx.DB.CreateMessage(l.ctx, db.CreateMessageParams{
		SessionID: sessionID,
		Role:      "assistant",
		Content:   result.Content,
		TokensIn:  result.InputTokens,
		TokensOut: result.OutputTokens,
	}); err != nil {
		l.Errorf("save assistant message: %v", err)
	}

	if err := l.svcCtx.DB.TouchSession(l.ctx, sessionID); err != nil {
		l.Errorf("touch session: %v", err)
	}
}

func titleFromMessage(message string) string {
	if len(message) <= titleLimit {
		return message
	}
	return tools.Clip(message, titleLimit) + "..."
}
