package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
	"github.com/adjutanthq/adjutant/internal/token"
)

func TestMain(m *testing.M) {
	logging.Disable()
	os.Exit(m.Run())
}

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken(ctx context.Context, userID string, provider oauth.Provider) (string, error) {
	return s.token, s.err
}

var _ token.Source = staticTokens{}

func TestHandleNotConnected(t *testing.T) {
	h := New(staticTokens{err: token.ErrNoValidToken})
	res := h.Handle(context.Background(), "user-1", "search_emails", json.RawMessage(`{"query":"is:unread"}`))
	require.False(t, res.Success)
	require.Contains(t, res.Error, "not connected")
}

func TestSearchEmails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/users/me/messages":
			require.Equal(t, "is:unread", r.URL.Query().Get("q"))
			require.Equal(t, "10", r.URL.Query().Get("maxResults"))
			json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]string{{"id": "msg-1"}},
			})
		case "/users/me/messages/msg-1":
			require.Equal(t, "metadata", r.URL.Query().Get("format"))
			json.NewEncoder(w).Encode(map[string]any{
				"id":       "msg-1",
				"threadId": "thread-1",
				"snippet":  "Lunch tomorrow?",
				"payload": map[string]any{
					"headers": []map[string]string{
						{"name": "Subject", "value": "Lunch"},
						{"name": "From", "value": "ada@example.com"},
						{"name": "Date", "value": "Mon, 1 Jan 2024 09:00:00 +0000"},
					},
				},
			})
		default:
			t.Fatalf("unexpected request %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	h := New(staticTokens{token: "at"}).WithBaseURL(srv.URL)
	res := h.Handle(context.Background(), "user-1", "search_emails",
		json.RawMessage(`{"query":"is:unread"}`))
	require.True(t, res.Success)

	data := res.Data.(map[string]any)
	require.Equal(t, 1, data["total"])
	require.Equal(t, "is:unread", data["query"])
}

func TestSearchEmailsClampsMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "50", r.URL.Query().Get("maxResults"))
		json.NewEncoder(w).Encode(map[string]any{"messages": []any{}})
	}))
	defer srv.Close()

	h := New(staticTokens{token: "at"}).WithBaseURL(srv.URL)
	res := h.Handle(context.Background(), "user-1", "search_emails",
		json.RawMessage(`{"query":"is:unread","maxResults":500}`))
	require.True(t, res.Success)

	data := res.Data.(map[string]any)
	require.Equal(t, 0, data["total"])
}

func TestGetEmailTruncatesBody(t *testing.T) {
	// 4999 ascii bytes then a 4-byte emoji. The 5000-byte cap lands
	// inside the emoji, so the clipped body ends at the last whole rune.
	long := strings.Repeat("x", 4999) + "🙂" + strings.Repeat("y", 100)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(long))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/me/messages/msg-1", r.URL.Path)
		require.Equal(t, "full", r.URL.Query().Get("format"))
		json.NewEncoder(w).Encode(map[string]any{
			"id":       "msg-1",
			"threadId": "thread-1",
			"payload": map[string]any{
				"headers": []map[string]string{
					{"name": "Subject", "value": "Quarterly report"},
					{"name": "From", "value": "ada@example.com"},
				},
				"body": map[string]string{"data": encoded},
			},
		})
	}))
	defer srv.Close()

	h := New(staticTokens{token: "at"}).WithBaseURL(srv.URL)
	res := h.Handle(context.Background(), "user-1", "get_email",
		json.RawMessage(`{"emailId":"msg-1"}`))
	require.True(t, res.Success)

	data := res.Data.(map[string]any)
	require.Equal(t, "Quarterly report", data["subject"])
	require.Equal(t, strings.Repeat("x", 4999), data["body"])
}

func TestGetEmailPrefersPlainTextPart(t *testing.T) {
	plain := base64.RawURLEncoding.EncodeToString([]byte("plain body"))
	html := base64.RawURLEncoding.EncodeToString([]byte("<p>html body</p>"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "msg-2",
			"payload": map[string]any{
				"parts": []map[string]any{
					{"mimeType": "text/html", "body": map[string]string{"data": html}},
					{"mimeType": "text/plain", "body": map[string]string{"data": plain}},
				},
			},
		})
	}))
	defer srv.Close()

	h := New(staticTokens{token: "at"}).WithBaseURL(srv.URL)
	res := h.Handle(context.Background(), "user-1", "get_email",
		json.RawMessage(`{"emailId":"msg-2"}`))
	require.True(t, res.Success)

	data := res.Data.(map[string]any)
	require.Equal(t, "plain body", data["body"])
}

func TestGetEmailNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	h := New(staticTokens{token: "at"}).WithBaseURL(srv.URL)
	res := h.Handle(context.Background(), "user-1", "get_email",
		json.RawMessage(`{"emailId":"missing"}`))
	require.False(t, res.Success)
	require.Equal(t, "Email not found", res.Error)
}

func TestSendEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users/me/messages/send", r.URL.Path)

		var body struct {
			Raw string `json:"raw"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw, err := base64.RawURLEncoding.DecodeString(body.Raw)
		require.NoError(t, err)

		mime := string(raw)
		require.Contains(t, mime, "To: bob@example.com\r\n")
		require.Contains(t, mime, "Cc: carol@example.com\r\n")
		require.Contains(t, mime, "Subject: Hello\r\n")
		require.True(t, strings.HasSuffix(mime, "\r\n\r\nSee you soon."))

		json.NewEncoder(w).Encode(map[string]string{"id": "sent-1", "threadId": "thread-9"})
	}))
	defer srv.Close()

	h := New(staticTokens{token: "at"}).WithBaseURL(srv.URL)
	res := h.Handle(context.Background(), "user-1", "send_email",
		json.RawMessage(`{"to":"bob@example.com","cc":"carol@example.com","subject":"Hello","body":"See you soon."}`))
	require.True(t, res.Success)

	data := res.Data.(map[string]any)
	require.Equal(t, "sent-1", data["messageId"])
	require.Equal(t, "Email sent successfully to bob@example.com", data["message"])
}

func TestUnknownTool(t *testing.T) {
	h := New(staticTokens{token: "at"})
	res := h.Handle(context.Background(), "user-1", "nope", json.RawMessage(`{}`))
	require.False(t, res.Success)
	require.Equal(t, "Unknown Gmail tool: nope", res.Error)
}
