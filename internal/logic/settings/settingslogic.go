// Package settings implements assistant preference and Fireflies API
// key management.
package settings

import (
	"context"
	"errors"

	"github.com/adjutanthq/adjutant/internal/db"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/types"
)

// ErrInvalidAPIKey is returned when a Fireflies key fails verification.
var ErrInvalidAPIKey = errors.New("invalid Fireflies API key")

type SettingsLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSettingsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SettingsLogic {
	return &SettingsLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Get returns the user's settings, filled with defaults when unset.
func (l *SettingsLogic) Get(userID string) (*types.Settings, error) {
	stored, err := l.svcCtx.DB.GetSettings(l.ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &types.Settings{
		AssistantName: l.svcCtx.Config.Assistant.DefaultName,
		Timezone:      l.svcCtx.Config.Assistant.DefaultTimezone,
	}
	if stored != nil {
		if stored.AssistantName != "" {
			out.AssistantName = stored.AssistantName
		}
		out.Personality = stored.Personality
		if stored.Timezone != "" {
			out.Timezone = stored.Timezone
		}
		out.HasFireflies = stored.FirefliesAPIKey != ""
	}
	return out, nil
}

// Update writes the provided fields; nil fields keep their value.
func (l *SettingsLogic) Update(userID string, req *types.UpdateSettingsRequest) (*types.Settings, error) {
	err := l.svcCtx.DB.UpsertSettings(l.ctx, db.UpsertSettingsParams{
		UserID:        userID,
		AssistantName: req.AssistantName,
		Personality:   req.Personality,
		Timezone:      req.Timezone,
	})
	if err != nil {
		return nil, err
	}
	return l.Get(userID)
}

// SetFirefliesKey verifies the key against the Fireflies API and stores
// it encrypted.
func (l *SettingsLogic) SetFirefliesKey(userID, apiKey string) error {
	if apiKey == "" {
		return ErrInvalidAPIKey
	}
	if !l.svcCtx.Fireflies.VerifyAPIKey(l.ctx, apiKey) {
		return ErrInvalidAPIKey
	}

	encrypted, err := l.svcCtx.Cipher.Encrypt(apiKey)
	if err != nil {
		return err
	}
	return l.svcCtx.DB.SetFirefliesKey(l.ctx, userID, encrypted)
}

// DeleteFirefliesKey clears the stored key. Idempotent.
func (l *SettingsLogic) DeleteFirefliesKey(userID string) error {
	return l.svcCtx.DB.SetFirefliesKey(l.ctx, userID, "")
}
