// Package integration reports and removes provider connections.
package integration

import (
	"context"
	"errors"

	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/types"
)

// ErrUnknownProvider is returned for a provider name outside the
// supported set.
var ErrUnknownProvider = errors.New("unknown provider")

type IntegrationLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewIntegrationLogic(ctx context.Context, svcCtx *svc.ServiceContext) *IntegrationLogic {
	return &IntegrationLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// List reports the connection status of every supported provider,
// connected or not.
func (l *IntegrationLogic) List(userID string) (*types.IntegrationListResponse, error) {
	stored, err := l.svcCtx.DB.ListIntegrations(l.ctx, userID)
	if err != nil {
		return nil, err
	}
	byProvider := make(map[string]*types.IntegrationStatus, len(stored))
	for _, integ := range stored {
		byProvider[integ.Provider] = &types.IntegrationStatus{
			Provider:       integ.Provider,
			Connected:      true,
			ConnectedEmail: integ.ConnectedEmail,
			Scopes:         integ.Scopes,
		}
	}

	out := make([]types.IntegrationStatus, 0, 3)
	for _, provider := range []oauth.Provider{oauth.ProviderGoogle, oauth.ProviderAsana} {
		if status, ok := byProvider[string(provider)]; ok {
			out = append(out, *status)
			continue
		}
		out = append(out, types.IntegrationStatus{Provider: string(provider)})
	}

	fireflies := types.IntegrationStatus{Provider: string(oauth.ProviderFireflies)}
	settings, err := l.svcCtx.DB.GetSettings(l.ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings != nil && settings.FirefliesAPIKey != "" {
		fireflies.Connected = true
	}
	out = append(out, fireflies)

	return &types.IntegrationListResponse{Integrations: out}, nil
}

// Disconnect removes a provider's stored credential. Disconnecting a
// provider that isn't connected succeeds.
func (l *IntegrationLogic) Disconnect(userID, provider string) error {
	switch oauth.Provider(provider) {
	case oauth.ProviderGoogle, oauth.ProviderAsana:
		return l.svcCtx.DB.DeleteIntegration(l.ctx, userID, provider)
	case oauth.ProviderFireflies:
		return l.svcCtx.DB.SetFirefliesKey(l.ctx, userID, "")
	default:
		return ErrUnknownProvider
	}
}
