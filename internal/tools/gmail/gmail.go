// Package gmail exposes the user's Gmail account as model tools.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
	"github.com/adjutanthq/adjutant/internal/token"
	"github.com/adjutanthq/adjutant/internal/tools"
)

const (
	defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

	notConnectedMsg = "Gmail is not connected or the connection has expired. Please reconnect Gmail in settings."

	maxSearchResults = 50
	maxBodyChars     = 5000
)

var htmlTags = regexp.MustCompile(`<[^>]*>`)
var whitespace = regexp.MustCompile(`\s+`)

// Handler implements tools.Handler for Gmail.
type Handler struct {
	tokens     token.Source
	baseURL    string
	httpClient *http.Client
}

// New builds a Gmail handler over the given token source.
func New(tokens token.Source) *Handler {
	return &Handler{
		tokens:     tokens,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the handler at a different API origin (tests).
func (h *Handler) WithBaseURL(baseURL string) *Handler {
	h.baseURL = baseURL
	return h
}

func (h *Handler) Provider() oauth.Provider {
	return oauth.ProviderGoogle
}

func (h *Handler) Definitions() []ai.ToolDefinition {
	return []ai.ToolDefinition{
		{
			Name:        "search_emails",
			Description: "Search the user's Gmail inbox using a query string. Returns a list of matching emails with subject, sender, date, and snippet. Use standard Gmail search operators like 'from:', 'to:', 'subject:', 'is:unread', 'newer_than:', etc.",
			InputSchema: tools.Schema(map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Gmail search query (e.g., 'from:john@example.com', 'is:unread', 'subject:meeting newer_than:7d')",
				},
				"maxResults": map[string]any{
					"type":        "number",
					"description": "Maximum number of emails to return (default: 10, max: 50)",
				},
			}, "query"),
		},
		{
			Name:        "get_email",
			Description: "Get the full details of a specific email by its ID. Returns the complete email including subject, sender, recipients, date, and body content.",
			InputSchema: tools.Schema(map[string]any{
				"emailId": map[string]any{
					"type":        "string",
					"description": "The Gmail message ID",
				},
			}, "emailId"),
		},
		{
			Name:        "send_email",
			Description: "Send an email on behalf of the user. The email will be sent immediately. Use this carefully and confirm with the user before sending.",
			InputSchema: tools.Schema(map[string]any{
				"to": map[string]any{
					"type":        "string",
					"description": "Recipient email address",
				},
				"subject": map[string]any{
					"type":        "string",
					"description": "Email subject line",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Email body content (plain text)",
				},
				"cc": map[string]any{
					"type":        "string",
					"description": "CC email address (optional)",
				},
				"bcc": map[string]any{
					"type":        "string",
					"description": "BCC email address (optional)",
				},
			}, "to", "subject", "body"),
		},
	}
}

func (h *Handler) Handle(ctx context.Context, userID, name string, input json.RawMessage) tools.Result {
	accessToken, err := h.tokens.AccessToken(ctx, userID, oauth.ProviderGoogle)
	if err != nil {
		return tools.Fail(notConnectedMsg)
	}

	switch name {
	case "search_emails":
		var in struct {
			Query      string `json:"query"`
			MaxResults int    `json:"maxResults"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid search_emails input")
		}
		return h.searchEmails(ctx, accessToken, in.Query, in.MaxResults)
	case "get_email":
		var in struct {
			EmailID string `json:"emailId"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid get_email input")
		}
		return h.getEmail(ctx, accessToken, in.EmailID)
	case "send_email":
		var in struct {
			To      string `json:"to"`
			Subject string `json:"subject"`
			Body    string `json:"body"`
			CC      string `json:"cc"`
			BCC     string `json:"bcc"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid send_email input")
		}
		return h.sendEmail(ctx, accessToken, in.To, in.Subject, in.Body, in.CC, in.BCC)
	default:
		return tools.Failf("Unknown Gmail tool: %s", name)
	}
}

type message struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Payload  *struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
		Body *struct {
			Data string `json:"data"`
		} `json:"body"`
		Parts []struct {
			MimeType string `json:"mimeType"`
			Body     *struct {
				Data string `json:"data"`
			} `json:"body"`
		} `json:"parts"`
	} `json:"payload"`
}

func (m *message) header(name string) string {
	if m.Payload == nil {
		return ""
	}
	for _, hdr := range m.Payload.Headers {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

func (h *Handler) searchEmails(ctx context.Context, accessToken, query string, maxResults int) tools.Result {
	limit := tools.ClampLimit(maxResults, 10, maxSearchResults)

	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", fmt.Sprint(limit))

	var listResp struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := h.getJSON(ctx, accessToken, "/users/me/messages?"+q.Encode(), &listResp); err != nil {
		logging.Errorf("gmail search: %v", err)
		return tools.Fail("Failed to search emails")
	}

	if len(listResp.Messages) == 0 {
		return tools.OK(map[string]any{"emails": []any{}, "total": 0})
	}

	type emailSummary struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
		Subject  string `json:"subject"`
		From     string `json:"from"`
		To       string `json:"to"`
		Date     string `json:"date"`
		Snippet  string `json:"snippet"`
	}

	emails := make([]emailSummary, 0, len(listResp.Messages))
	for _, m := range listResp.Messages {
		var msg message
		path := "/users/me/messages/" + m.ID +
			"?format=metadata&metadataHeaders=From&metadataHeaders=To&metadataHeaders=Subject&metadataHeaders=Date"
		if err := h.getJSON(ctx, accessToken, path, &msg); err != nil {
			continue
		}
		emails = append(emails, emailSummary{
			ID:       msg.ID,
			ThreadID: msg.ThreadID,
			Subject:  msg.header("Subject"),
			From:     msg.header("From"),
			To:       msg.header("To"),
			Date:     msg.header("Date"),
			Snippet:  msg.Snippet,
		})
	}

	return tools.OK(map[string]any{
		"emails": emails,
		"total":  len(emails),
		"query":  query,
	})
}

func (h *Handler) getEmail(ctx context.Context, accessToken, emailID string) tools.Result {
	var msg message
	err := h.getJSON(ctx, accessToken, "/users/me/messages/"+emailID+"?format=full", &msg)
	if err != nil {
		if isNotFound(err) {
			return tools.Fail("Email not found")
		}
		logging.Errorf("gmail get: %v", err)
		return tools.Fail("Failed to retrieve email")
	}

	body := tools.Clip(extractBody(&msg), maxBodyChars)

	return tools.OK(map[string]any{
		"id":       msg.ID,
		"threadId": msg.ThreadID,
		"subject":  msg.header("Subject"),
		"from":     msg.header("From"),
		"to":       msg.header("To"),
		"cc":       msg.header("Cc"),
		"date":     msg.header("Date"),
		"body":     body,
		"snippet":  msg.Snippet,
	})
}

func extractBody(msg *message) string {
	if msg.Payload == nil {
		return ""
	}
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		return decodeBody(msg.Payload.Body.Data, false)
	}

	var htmlData string
	for _, part := range msg.Payload.Parts {
		if part.Body == nil || part.Body.Data == "" {
			continue
		}
		switch part.MimeType {
		case "text/plain":
			return decodeBody(part.Body.Data, false)
		case "text/html":
			if htmlData == "" {
				htmlData = part.Body.Data
			}
		}
	}
	if htmlData != "" {
		return decodeBody(htmlData, true)
	}
	return ""
}

func decodeBody(data string, stripHTML bool) string {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	body := string(raw)
	if stripHTML {
		body = htmlTags.ReplaceAllString(body, " ")
		body = strings.TrimSpace(whitespace.ReplaceAllString(body, " "))
	}
	return body
}

func (h *Handler) sendEmail(ctx context.Context, accessToken, to, subject, body, cc, bcc string) tools.Result {
	lines := []string{"To: " + to}
	if cc != "" {
		lines = append(lines, "Cc: "+cc)
	}
	if bcc != "" {
		lines = append(lines, "Bcc: "+bcc)
	}
	lines = append(lines,
		"Subject: "+subject,
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	)
	raw := base64.RawURLEncoding.EncodeToString([]byte(strings.Join(lines, "\r\n")))

	payload, _ := json.Marshal(map[string]string{"raw": raw})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/users/me/messages/send", strings.NewReader(string(payload)))
	if err != nil {
		return tools.Fail("Failed to send email")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		logging.Errorf("gmail send: %v", err)
		return tools.Fail("Failed to send email")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logging.Errorf("gmail send returned %d: %s", resp.StatusCode, respBody)
		return tools.Fail("Failed to send email")
	}

	var sent struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return tools.Fail("Failed to send email")
	}

	return tools.OK(map[string]any{
		"messageId": sent.ID,
		"threadId":  sent.ThreadID,
		"message":   "Email sent successfully to " + to,
	})
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gmail API returned %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func (h *Handler) getJSON(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{status: resp.StatusCode, body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
