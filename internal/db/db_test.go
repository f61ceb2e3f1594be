package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adjutanthq/adjutant/internal/logging"
)

func TestMain(m *testing.M) {
	logging.Disable()
	os.Exit(m.Run())
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "user-1", "First session")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.False(t, sess.CreatedAt.IsZero())

	got, err := store.GetSession(ctx, "user-1", sess.ID)
	require.NoError(t, err)
	require.Equal(t, "First session", got.Title)

	_, err = store.GetSession(ctx, "user-2", sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.CreateMessage(ctx, CreateMessageParams{
		SessionID: sess.ID, Role: "user", Content: "hello",
	})
	require.NoError(t, err)
	_, err = store.CreateMessage(ctx, CreateMessageParams{
		SessionID: sess.ID, Role: "assistant", Content: "hi there",
		TokensIn: 12, TokensOut: 34,
	})
	require.NoError(t, err)

	messages, err := store.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "user", messages[0].Role)
	require.Equal(t, "assistant", messages[1].Role)
	require.Equal(t, int64(12), messages[1].TokensIn)
	require.Equal(t, int64(34), messages[1].TokensOut)

	require.NoError(t, store.TouchSession(ctx, sess.ID))

	sessions, err := store.ListSessions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.NoError(t, store.DeleteSession(ctx, "user-1", sess.ID))

	// Messages go with the session.
	messages, err = store.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Empty(t, messages)

	require.ErrorIs(t, store.DeleteSession(ctx, "user-1", sess.ID), ErrSessionNotFound)
}

func TestSettingsUpsertKeepsUnsetFields(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	require.Nil(t, settings)

	name := "Ada"
	require.NoError(t, store.UpsertSettings(ctx, UpsertSettingsParams{
		UserID: "user-1", AssistantName: &name,
	}))

	personality := "brisk and direct"
	require.NoError(t, store.UpsertSettings(ctx, UpsertSettingsParams{
		UserID: "user-1", Personality: &personality,
	}))

	settings, err = store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Ada", settings.AssistantName)
	require.Equal(t, "brisk and direct", settings.Personality)
}

func TestSetFirefliesKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Works without a prior settings row.
	require.NoError(t, store.SetFirefliesKey(ctx, "user-1", "ciphertext"))

	settings, err := store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "ciphertext", settings.FirefliesAPIKey)

	require.NoError(t, store.SetFirefliesKey(ctx, "user-1", ""))
	settings, err = store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, settings.FirefliesAPIKey)
}

func TestIntegrationUpsertAndRefresh(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	integ, err := store.GetIntegration(ctx, "user-1", "google")
	require.NoError(t, err)
	require.Nil(t, integ)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, store.UpsertIntegration(ctx, UpsertIntegrationParams{
		UserID:         "user-1",
		Provider:       "google",
		AccessToken:    "enc-access",
		RefreshToken:   "enc-refresh",
		ExpiresAt:      expires,
		Scopes:         []string{"calendar", "gmail.readonly"},
		ConnectedEmail: "ada@example.com",
	}))

	integ, err = store.GetIntegration(ctx, "user-1", "google")
	require.NoError(t, err)
	require.Equal(t, "enc-access", integ.AccessToken)
	require.Equal(t, "enc-refresh", integ.RefreshToken.String)
	require.Equal(t, []string{"calendar", "gmail.readonly"}, integ.Scopes)
	require.Equal(t, "ada@example.com", integ.ConnectedEmail)
	require.True(t, integ.ExpiresAt.Valid)

	// A refresh with no rotated refresh token keeps the stored one.
	require.NoError(t, store.UpdateTokens(ctx, UpdateTokensParams{
		UserID:      "user-1",
		Provider:    "google",
		AccessToken: "enc-access-2",
		ExpiresAt:   expires.Add(time.Hour),
	}))

	integ, err = store.GetIntegration(ctx, "user-1", "google")
	require.NoError(t, err)
	require.Equal(t, "enc-access-2", integ.AccessToken)
	require.Equal(t, "enc-refresh", integ.RefreshToken.String)

	// Reconnecting replaces the row for the same (user, provider).
	require.NoError(t, store.UpsertIntegration(ctx, UpsertIntegrationParams{
		UserID:         "user-1",
		Provider:       "google",
		AccessToken:    "enc-access-3",
		ConnectedEmail: "other@example.com",
	}))
	integ, err = store.GetIntegration(ctx, "user-1", "google")
	require.NoError(t, err)
	require.Equal(t, "enc-access-3", integ.AccessToken)
	require.False(t, integ.RefreshToken.Valid)
	require.Equal(t, "other@example.com", integ.ConnectedEmail)

	list, err := store.ListIntegrations(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.DeleteIntegration(ctx, "user-1", "google"))
	require.NoError(t, store.DeleteIntegration(ctx, "user-1", "google"))
}
