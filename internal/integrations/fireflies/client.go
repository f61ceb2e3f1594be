// Package fireflies is a client for the Fireflies.ai GraphQL API.
// Authentication is an API key sent as a bearer token.
package fireflies

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.fireflies.ai/graphql"

// Transcript is a meeting transcript summary row.
type Transcript struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Date           FlexTime `json:"date"`
	Duration       float64  `json:"duration"`
	Participants   []string `json:"participants"`
	HostEmail      string   `json:"host_email"`
	OrganizerEmail string   `json:"organizer_email"`
	TranscriptURL  string   `json:"transcript_url"`
	AudioURL       string   `json:"audio_url"`
}

// TranscriptDetail adds the summary and sentence stream.
type TranscriptDetail struct {
	Transcript
	Summary *struct {
		Overview    string   `json:"overview"`
		ActionItems []string `json:"action_items"`
		Keywords    []string `json:"keywords"`
	} `json:"summary"`
	Sentences []Sentence `json:"sentences"`
}

// Sentence is one spoken statement.
type Sentence struct {
	SpeakerName string  `json:"speaker_name"`
	Text        string  `json:"text"`
	StartTime   float64 `json:"start_time"`
}

// FlexTime decodes the API's date field, which arrives either as epoch
// milliseconds or as an ISO 8601 string.
type FlexTime struct {
	time.Time
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		t.Time = time.UnixMilli(int64(ms)).UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parse fireflies date %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Client executes GraphQL queries with a per-call API key.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a Fireflies client.
func NewClient() *Client {
	return &Client{
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithEndpoint overrides the GraphQL endpoint (tests).
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// Query runs one GraphQL operation and decodes its data into out.
func (c *Client) Query(ctx context.Context, apiKey, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fireflies request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("fireflies API error: %d %s", resp.StatusCode, body)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("fireflies API error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

const transcriptFields = "id title date duration participants host_email organizer_email transcript_url audio_url"

// ListTranscripts returns recent transcripts, newest first.
func (c *Client) ListTranscripts(ctx context.Context, apiKey string, limit int, fromDate string) ([]Transcript, error) {
	query := fmt.Sprintf(
		"query Transcripts($limit: Int, $fromDate: DateTime) { transcripts(limit: $limit, fromDate: $fromDate) { %s } }",
		transcriptFields)
	variables := map[string]any{"limit": limit}
	if fromDate != "" {
		variables["fromDate"] = fromDate
	}

	var data struct {
		Transcripts []Transcript `json:"transcripts"`
	}
	if err := c.Query(ctx, apiKey, query, variables, &data); err != nil {
		return nil, err
	}
	return data.Transcripts, nil
}

// GetTranscript returns one transcript with full details, or nil if the
// id is unknown.
func (c *Client) GetTranscript(ctx context.Context, apiKey, transcriptID string) (*TranscriptDetail, error) {
	query := fmt.Sprintf(
		"query Transcript($transcriptId: String!) { transcript(id: $transcriptId) { %s summary { overview action_items keywords } sentences { speaker_name text start_time } } }",
		transcriptFields)

	var data struct {
		Transcript *TranscriptDetail `json:"transcript"`
	}
	if err := c.Query(ctx, apiKey, query, map[string]any{"transcriptId": transcriptID}, &data); err != nil {
		return nil, err
	}
	return data.Transcript, nil
}

// SearchTranscripts searches titles and spoken content by keyword.
func (c *Client) SearchTranscripts(ctx context.Context, apiKey, keyword string, limit int) ([]Transcript, error) {
	query := fmt.Sprintf(
		"query SearchTranscripts($keyword: String!, $limit: Int) { transcripts(keyword: $keyword, limit: $limit, scope: all) { %s } }",
		transcriptFields)

	var data struct {
		Transcripts []Transcript `json:"transcripts"`
	}
	if err := c.Query(ctx, apiKey, query, map[string]any{"keyword": keyword, "limit": limit}, &data); err != nil {
		return nil, err
	}
	return data.Transcripts, nil
}

// VerifyAPIKey reports whether the key can authenticate.
func (c *Client) VerifyAPIKey(ctx context.Context, apiKey string) bool {
	err := c.Query(ctx, apiKey, "query { user { email name } }", nil, nil)
	return err == nil
}
