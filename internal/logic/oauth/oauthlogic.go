// Package oauth implements the authorization flow: building consent
// URLs and landing the provider's callback.
package oauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/adjutanthq/adjutant/internal/db"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
	"github.com/adjutanthq/adjutant/internal/svc"
	"github.com/adjutanthq/adjutant/internal/types"
)

var (
	// ErrUnknownProvider is returned for a provider with no OAuth flow.
	ErrUnknownProvider = errors.New("unknown oauth provider")
	// ErrNotConfigured is returned when the provider's client
	// credentials are missing from configuration.
	ErrNotConfigured = errors.New("oauth provider not configured")
)

type OAuthLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewOAuthLogic(ctx context.Context, svcCtx *svc.ServiceContext) *OAuthLogic {
	return &OAuthLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Connect returns the provider's consent URL with a signed state bound
// to the requesting user.
func (l *OAuthLogic) Connect(userID, provider string) (*types.ConnectResponse, error) {
	client, ok := l.svcCtx.OAuthClients[oauth.Provider(provider)]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if !client.Configured() {
		return nil, ErrNotConfigured
	}

	state, err := l.svcCtx.StateSigner.Sign(userID)
	if err != nil {
		return nil, err
	}
	return &types.ConnectResponse{URL: client.AuthCodeURL(state)}, nil
}

// Callback lands the provider redirect: it verifies the state, swaps
// the code for tokens, encrypts them, and stores the credential. It
// returns the settings-page URL to redirect the browser to, carrying a
// success or error flag. The state signature is the only thing binding
// the unauthenticated redirect to a user, so every failure before it
// verifies is reported without touching storage.
func (l *OAuthLogic) Callback(provider, state, code, providerErr string) string {
	client, ok := l.svcCtx.OAuthClients[oauth.Provider(provider)]
	if !ok {
		return l.settingsRedirect("error", "unknown_provider")
	}
	if providerErr != "" {
		l.Warnf("oauth %s: provider returned error %q", provider, providerErr)
		return l.settingsRedirect("error", "access_denied")
	}
	if code == "" {
		return l.settingsRedirect("error", "missing_code")
	}

	userID, err := l.svcCtx.StateSigner.Verify(state)
	if err != nil {
		l.Warnf("oauth %s: state rejected: %v", provider, err)
		if errors.Is(err, oauth.ErrStateExpired) {
			return l.settingsRedirect("error", "state_expired")
		}
		return l.settingsRedirect("error", "invalid_state")
	}

	tok, err := client.Exchange(l.ctx, code)
	if err != nil {
		l.Errorf("oauth %s: code exchange failed: %v", provider, err)
		return l.settingsRedirect("error", "exchange_failed")
	}

	// The email is display-only; a lookup failure doesn't block the
	// connection.
	email, err := client.FetchEmail(l.ctx, tok.AccessToken)
	if err != nil {
		l.Warnf("oauth %s: userinfo lookup failed: %v", provider, err)
	}

	if err := l.store(userID, provider, tok, email); err != nil {
		l.Errorf("oauth %s: store credential failed: %v", provider, err)
		return l.settingsRedirect("error", "storage_failed")
	}

	return l.settingsRedirect("connected", provider)
}

func (l *OAuthLogic) store(userID, provider string, tok *oauth.Token, email string) error {
	access, err := l.svcCtx.Cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := l.svcCtx.Cipher.Encrypt(tok.RefreshToken)
	if err != nil {
		return err
	}
	return l.svcCtx.DB.UpsertIntegration(l.ctx, db.UpsertIntegrationParams{
		UserID:         userID,
		Provider:       provider,
		AccessToken:    access,
		RefreshToken:   refresh,
		ExpiresAt:      tok.ExpiresAt(time.Now()),
		Scopes:         tok.Scopes(),
		ConnectedEmail: email,
	})
}

func (l *OAuthLogic) settingsRedirect(key, value string) string {
	base := l.svcCtx.Config.Server.SettingsURL
	q := url.Values{}
	q.Set(key, value)
	return base + "?" + q.Encode()
}
