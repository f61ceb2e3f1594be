// Package svc wires the service's shared dependencies into a single
// context handed to every handler.
package svc

import (
	"context"
	"fmt"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/capability"
	"github.com/adjutanthq/adjutant/internal/config"
	"github.com/adjutanthq/adjutant/internal/crypto"
	"github.com/adjutanthq/adjutant/internal/db"
	"github.com/adjutanthq/adjutant/internal/integrations/fireflies"
	"github.com/adjutanthq/adjutant/internal/oauth"
	"github.com/adjutanthq/adjutant/internal/orchestrator"
	"github.com/adjutanthq/adjutant/internal/token"
	"github.com/adjutanthq/adjutant/internal/tools"
	asanatools "github.com/adjutanthq/adjutant/internal/tools/asana"
	calendartools "github.com/adjutanthq/adjutant/internal/tools/calendar"
	firefliestools "github.com/adjutanthq/adjutant/internal/tools/fireflies"
	gmailtools "github.com/adjutanthq/adjutant/internal/tools/gmail"
)

// ServiceContext carries every shared dependency.
type ServiceContext struct {
	Config       *config.Config
	DB           *db.Store
	Cipher       *crypto.Cipher
	Tokens       *token.Store
	AI           ai.Client
	Registry     *tools.Registry
	Capabilities *capability.Resolver
	Orchestrator *orchestrator.Orchestrator
	Fireflies    *fireflies.Client
	OAuthClients map[oauth.Provider]*oauth.Client
	StateSigner  *oauth.StateSigner
}

// NewServiceContext builds the full dependency graph. The tool registry
// is validated here, so a routing conflict fails startup instead of a
// request.
func NewServiceContext(cfg *config.Config) (*ServiceContext, error) {
	cipher, err := crypto.NewCipher(cfg.Encryption.Secret)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	googleClient, err := oauth.NewClient(oauth.ProviderGoogle,
		cfg.OAuth.Google.ClientID, cfg.OAuth.Google.ClientSecret,
		cfg.Server.BaseURL+"/oauth/google/callback")
	if err != nil {
		return nil, err
	}
	asanaClient, err := oauth.NewClient(oauth.ProviderAsana,
		cfg.OAuth.Asana.ClientID, cfg.OAuth.Asana.ClientSecret,
		cfg.Server.BaseURL+"/oauth/asana/callback")
	if err != nil {
		return nil, err
	}

	tokens := token.NewStore(database, cipher, googleClient, asanaClient)
	firefliesClient := fireflies.NewClient()

	svcCtx := &ServiceContext{
		Config:       cfg,
		DB:           database,
		Cipher:       cipher,
		Tokens:       tokens,
		AI:           ai.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens),
		Capabilities: capability.NewResolver(database),
		Fireflies:    firefliesClient,
		OAuthClients: map[oauth.Provider]*oauth.Client{
			oauth.ProviderGoogle: googleClient,
			oauth.ProviderAsana:  asanaClient,
		},
		StateSigner: oauth.NewStateSigner(cfg.Auth.JWTSecret),
	}

	registry, err := tools.NewRegistry(
		gmailtools.New(tokens),
		calendartools.New(tokens),
		asanatools.New(tokens),
		firefliestools.New(firefliesClient, svcCtx.FirefliesKey),
	)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	svcCtx.Registry = registry
	svcCtx.Orchestrator = orchestrator.New(svcCtx.AI, registry)

	return svcCtx, nil
}

// FirefliesKey returns the user's decrypted Fireflies API key, or ""
// when no key is stored.
func (s *ServiceContext) FirefliesKey(ctx context.Context, userID string) (string, error) {
	settings, err := s.DB.GetSettings(ctx, userID)
	if err != nil {
		return "", err
	}
	if settings == nil || settings.FirefliesAPIKey == "" {
		return "", nil
	}
	return s.Cipher.Decrypt(settings.FirefliesAPIKey)
}

// Close releases held resources.
func (s *ServiceContext) Close() error {
	return s.DB.Close()
}
