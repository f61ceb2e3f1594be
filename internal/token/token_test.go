package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adjutanthq/adjutant/internal/crypto"
	"github.com/adjutanthq/adjutant/internal/db"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
)

func TestMain(m *testing.M) {
	logging.Disable()
	m.Run()
}

func newTestStore(t *testing.T, tokenURL string) (*Store, *db.Store, *crypto.Cipher) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cipher, err := crypto.NewCipher("test-secret")
	require.NoError(t, err)

	client, err := oauth.NewClient(oauth.ProviderGoogle, "cid", "csecret", "http://localhost/cb")
	require.NoError(t, err)
	client.WithEndpoints("", tokenURL, "")

	return NewStore(database, cipher, client), database, cipher
}

func seedIntegration(t *testing.T, database *db.Store, cipher *crypto.Cipher, access, refresh string, expiresAt time.Time) {
	t.Helper()

	encAccess, err := cipher.Encrypt(access)
	require.NoError(t, err)
	encRefresh, err := cipher.Encrypt(refresh)
	require.NoError(t, err)

	require.NoError(t, database.UpsertIntegration(context.Background(), db.UpsertIntegrationParams{
		UserID:      "user-1",
		Provider:    "google",
		AccessToken: encAccess,
		RefreshToken: encRefresh,
		ExpiresAt:   expiresAt,
	}))
}

func TestAccessTokenNotConnected(t *testing.T) {
	store, _, _ := newTestStore(t, "")

	_, err := store.AccessToken(context.Background(), "user-1", oauth.ProviderGoogle)
	require.ErrorIs(t, err, ErrNoValidToken)
}

func TestAccessTokenFresh(t *testing.T) {
	store, database, cipher := newTestStore(t, "")
	seedIntegration(t, database, cipher, "fresh-token", "refresh-1", time.Now().Add(time.Hour))

	got, err := store.AccessToken(context.Background(), "user-1", oauth.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "fresh-token", got)
}

func TestAccessTokenNoExpiryNeverRefreshes(t *testing.T) {
	store, database, cipher := newTestStore(t, "")
	seedIntegration(t, database, cipher, "eternal-token", "refresh-1", time.Time{})

	got, err := store.AccessToken(context.Background(), "user-1", oauth.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "eternal-token", got)
}

func TestAccessTokenRefreshesExpired(t *testing.T) {
	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		require.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-token","expires_in":3600}`))
	}))
	defer srv.Close()

	store, database, cipher := newTestStore(t, srv.URL)
	seedIntegration(t, database, cipher, "stale-token", "refresh-1", time.Now().Add(time.Minute))

	got, err := store.AccessToken(context.Background(), "user-1", oauth.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "new-token", got)
	require.Equal(t, 1, refreshCalls)

	// New access token and expiry persisted; unrotated refresh token kept.
	integ, err := database.GetIntegration(context.Background(), "user-1", "google")
	require.NoError(t, err)
	access, err := cipher.Decrypt(integ.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "new-token", access)
	refresh, err := cipher.Decrypt(integ.RefreshToken.String)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", refresh)
	require.True(t, integ.ExpiresAt.Valid)
	require.True(t, integ.ExpiresAt.Time.After(time.Now().Add(30*time.Minute)))

	// Next lookup uses the stored token without another exchange.
	got, err = store.AccessToken(context.Background(), "user-1", oauth.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "new-token", got)
	require.Equal(t, 1, refreshCalls)
}

func TestAccessTokenConcurrentCallersRefreshOnce(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		// Hold the exchange open so all callers are in flight at once.
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-token","expires_in":3600}`))
	}))
	defer srv.Close()

	store, database, cipher := newTestStore(t, srv.URL)
	seedIntegration(t, database, cipher, "stale-token", "refresh-1", time.Now().Add(-time.Minute))

	const callers = 8
	tokens := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = store.AccessToken(context.Background(), "user-1", oauth.ProviderGoogle)
		}(i)
	}
	wg.Wait()

	// One caller performs the exchange; the rest block on the keyed
	// lock and pick up the stored token on re-read.
	require.Equal(t, int32(1), refreshCalls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "new-token", tokens[i])
	}
}

func TestAccessTokenRotatedRefreshTokenStored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-token","refresh_token":"refresh-2","expires_in":3600}`))
	}))
	defer srv.Close()

	store, database, cipher := newTestStore(t, srv.URL)
	seedIntegration(t, database, cipher, "stale-token", "refresh-1", time.Now().Add(-time.Minute))

	_, err := store.AccessToken(context.Background(), "user-1", oauth.ProviderGoogle)
	require.NoError(t, err)

	integ, err := database.GetIntegration(context.Background(), "user-1", "google")
	require.NoError(t, err)
	refresh, err := cipher.Decrypt(integ.RefreshToken.String)
	require.NoError(t, err)
	require.Equal(t, "refresh-2", refresh)
}

func TestAccessTokenExpiredWithoutRefreshToken(t *testing.T) {
	store, database, cipher := newTestStore(t, "")
	seedIntegration(t, database, cipher, "stale-token", "", time.Now().Add(-time.Minute))

	_, err := store.AccessToken(context.Background(), "user-1", oauth.ProviderGoogle)
	require.ErrorIs(t, err, ErrNoValidToken)
}

func TestAccessTokenRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	store, database, cipher := newTestStore(t, srv.URL)
	seedIntegration(t, database, cipher, "stale-token", "refresh-1", time.Now().Add(-time.Minute))

	_, err := store.AccessToken(context.Background(), "user-1", oauth.ProviderGoogle)
	require.ErrorIs(t, err, ErrNoValidToken)

	// Failed refresh leaves the stored row untouched.
	integ, err := database.GetIntegration(context.Background(), "user-1", "google")
	require.NoError(t, err)
	access, err := cipher.Decrypt(integ.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "stale-token", access)
}
