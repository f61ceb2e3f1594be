// Package token resolves usable access tokens for integration calls,
// refreshing expired credentials transparently.
package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adjutanthq/adjutant/internal/crypto"
	"github.com/adjutanthq/adjutant/internal/db"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
)

// ErrNoValidToken means the provider is not connected, the credential
// has expired without a refresh token, or a refresh attempt failed.
// Callers surface it to the model as a plain tool failure.
var ErrNoValidToken = errors.New("no valid token")

// refreshMargin refreshes tokens this close to expiry so a token doesn't
// die mid-request.
const refreshMargin = 5 * time.Minute

// Source yields an access token for (user, provider). Adapters depend on
// this instead of the concrete store.
type Source interface {
	AccessToken(ctx context.Context, userID string, provider oauth.Provider) (string, error)
}

// Store reads credentials from the database, decrypts them, and refreshes
// through the provider's OAuth client when needed.
type Store struct {
	db      *db.Store
	cipher  *crypto.Cipher
	clients map[oauth.Provider]*oauth.Client
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore builds a token store over the given OAuth clients.
func NewStore(database *db.Store, cipher *crypto.Cipher, clients ...*oauth.Client) *Store {
	m := make(map[oauth.Provider]*oauth.Client, len(clients))
	for _, c := range clients {
		m[c.Provider()] = c
	}
	return &Store{
		db:      database,
		cipher:  cipher,
		clients: m,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// AccessToken returns a decrypted access token valid for at least the
// refresh margin, refreshing first if necessary. Exactly one refresh
// exchange runs per (user, provider) at a time; concurrent callers wait
// and reuse the refreshed row.
func (s *Store) AccessToken(ctx context.Context, userID string, provider oauth.Provider) (string, error) {
	integ, err := s.db.GetIntegration(ctx, userID, string(provider))
	if err != nil {
		return "", err
	}
	if integ == nil {
		return "", ErrNoValidToken
	}
	if s.fresh(integ) {
		return s.cipher.Decrypt(integ.AccessToken)
	}
	if !integ.RefreshToken.Valid || integ.RefreshToken.String == "" {
		return "", ErrNoValidToken
	}

	lock := s.lockFor(userID, provider)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	integ, err = s.db.GetIntegration(ctx, userID, string(provider))
	if err != nil {
		return "", err
	}
	if integ == nil {
		return "", ErrNoValidToken
	}
	if s.fresh(integ) {
		return s.cipher.Decrypt(integ.AccessToken)
	}

	return s.refresh(ctx, userID, provider, integ)
}

// fresh reports whether the stored token is still usable. Tokens without
// a recorded expiry never refresh.
func (s *Store) fresh(integ *db.Integration) bool {
	if !integ.ExpiresAt.Valid {
		return true
	}
	return integ.ExpiresAt.Time.After(s.now().Add(refreshMargin))
}

func (s *Store) refresh(ctx context.Context, userID string, provider oauth.Provider, integ *db.Integration) (string, error) {
	client, ok := s.clients[provider]
	if !ok {
		return "", ErrNoValidToken
	}

	refreshToken, err := s.cipher.Decrypt(integ.RefreshToken.String)
	if err != nil {
		return "", err
	}

	tok, err := client.Refresh(ctx, refreshToken)
	if err != nil {
		logging.Warnf("token refresh failed for user=%s provider=%s: %v", userID, provider, err)
		return "", ErrNoValidToken
	}

	encAccess, err := s.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return "", err
	}
	// Providers that don't rotate refresh tokens return none; keep the
	// stored one in that case.
	var encRefresh string
	if tok.RefreshToken != "" {
		if encRefresh, err = s.cipher.Encrypt(tok.RefreshToken); err != nil {
			return "", err
		}
	}

	err = s.db.UpdateTokens(ctx, db.UpdateTokensParams{
		UserID:       userID,
		Provider:     string(provider),
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		ExpiresAt:    tok.ExpiresAt(s.now()),
	})
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (s *Store) lockFor(userID string, provider oauth.Provider) *sync.Mutex {
	key := userID + "/" + string(provider)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
