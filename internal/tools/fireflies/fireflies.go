// Package fireflies exposes Fireflies.ai meeting transcripts as model
// tools. Results are formatted as markdown rather than JSON so the
// model can quote them directly.
package fireflies

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/integrations/fireflies"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
	"github.com/adjutanthq/adjutant/internal/tools"
)

const (
	notConnectedMsg = "Fireflies.ai is not connected. Please add your API key in Settings."

	maxLimit         = 50
	previewSentences = 20
)

// KeyLookup returns the user's decrypted Fireflies API key, or "" when
// no key is stored.
type KeyLookup func(ctx context.Context, userID string) (string, error)

// Handler implements tools.Handler for Fireflies.
type Handler struct {
	client *fireflies.Client
	keyFor KeyLookup
}

// New builds a Fireflies handler.
func New(client *fireflies.Client, keyFor KeyLookup) *Handler {
	return &Handler{client: client, keyFor: keyFor}
}

func (h *Handler) Provider() oauth.Provider {
	return oauth.ProviderFireflies
}

func (h *Handler) Definitions() []ai.ToolDefinition {
	return []ai.ToolDefinition{
		{
			Name:        "list_fireflies_transcripts",
			Description: "List recent meeting transcripts from Fireflies.ai. Returns meeting titles, dates, durations, and participants.",
			InputSchema: tools.Schema(map[string]any{
				"limit": map[string]any{
					"type":        "number",
					"description": "Maximum number of transcripts to return (1-50, default 10)",
				},
				"fromDate": map[string]any{
					"type":        "string",
					"description": "Only return transcripts from after this date (ISO 8601 format, e.g., 2024-01-01)",
				},
			}),
		},
		{
			Name:        "get_fireflies_transcript",
			Description: "Get a specific meeting transcript with full details including summary, action items, keywords, and the conversation text.",
			InputSchema: tools.Schema(map[string]any{
				"transcriptId": map[string]any{
					"type":        "string",
					"description": "The ID of the transcript to retrieve",
				},
			}, "transcriptId"),
		},
		{
			Name:        "search_fireflies_transcripts",
			Description: "Search meeting transcripts by keyword. Searches both meeting titles and spoken content.",
			InputSchema: tools.Schema(map[string]any{
				"keyword": map[string]any{
					"type":        "string",
					"description": "The search term to look for in transcripts",
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Maximum number of results to return (default 10)",
				},
			}, "keyword"),
		},
	}
}

func (h *Handler) Handle(ctx context.Context, userID, name string, input json.RawMessage) tools.Result {
	apiKey, err := h.keyFor(ctx, userID)
	if err != nil {
		logging.Errorf("fireflies key lookup: %v", err)
		return tools.Fail(notConnectedMsg)
	}
	if apiKey == "" {
		return tools.Fail(notConnectedMsg)
	}

	switch name {
	case "list_fireflies_transcripts":
		var in struct {
			Limit    int    `json:"limit"`
			FromDate string `json:"fromDate"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid list_fireflies_transcripts input")
		}
		return h.listTranscripts(ctx, apiKey, in.Limit, in.FromDate)
	case "get_fireflies_transcript":
		var in struct {
			TranscriptID string `json:"transcriptId"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid get_fireflies_transcript input")
		}
		return h.getTranscript(ctx, apiKey, in.TranscriptID)
	case "search_fireflies_transcripts":
		var in struct {
			Keyword string `json:"keyword"`
			Limit   int    `json:"limit"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid search_fireflies_transcripts input")
		}
		return h.searchTranscripts(ctx, apiKey, in.Keyword, in.Limit)
	default:
		return tools.Failf("Unknown Fireflies tool: %s", name)
	}
}

func (h *Handler) listTranscripts(ctx context.Context, apiKey string, limit int, fromDate string) tools.Result {
	transcripts, err := h.client.ListTranscripts(ctx, apiKey,
		tools.ClampLimit(limit, 10, maxLimit), fromDate)
	if err != nil {
		logging.Errorf("fireflies list: %v", err)
		return tools.Fail("Failed to list transcripts")
	}
	return tools.OK(formatTranscriptList(transcripts))
}

func (h *Handler) getTranscript(ctx context.Context, apiKey, transcriptID string) tools.Result {
	transcript, err := h.client.GetTranscript(ctx, apiKey, transcriptID)
	if err != nil {
		logging.Errorf("fireflies get: %v", err)
		return tools.Fail("Failed to get transcript")
	}
	if transcript == nil {
		return tools.Failf("Transcript with ID %q not found.", transcriptID)
	}
	return tools.OK(formatTranscriptDetail(transcript))
}

func (h *Handler) searchTranscripts(ctx context.Context, apiKey, keyword string, limit int) tools.Result {
	transcripts, err := h.client.SearchTranscripts(ctx, apiKey, keyword,
		tools.ClampLimit(limit, 10, maxLimit))
	if err != nil {
		logging.Errorf("fireflies search: %v", err)
		return tools.Fail("Failed to search transcripts")
	}
	if len(transcripts) == 0 {
		return tools.OK(fmt.Sprintf("No transcripts found matching %q.", keyword))
	}
	return tools.OK(fmt.Sprintf("Found %d transcript(s) matching %q:\n\n%s",
		len(transcripts), keyword, formatTranscriptList(transcripts)))
}

func formatTranscriptList(transcripts []fireflies.Transcript) string {
	if len(transcripts) == 0 {
		return "No transcripts found."
	}

	entries := make([]string, 0, len(transcripts))
	for i, t := range transcripts {
		participants := "Unknown"
		if len(t.Participants) > 0 {
			participants = strings.Join(t.Participants, ", ")
		}
		entries = append(entries, fmt.Sprintf(`%d. **%s**
   - ID: %s
   - Date: %s
   - Duration: %d minutes
   - Participants: %s`,
			i+1, t.Title, t.ID,
			t.Date.Format("Mon, Jan 2, 2006"),
			int(t.Duration/60+0.5),
			participants))
	}
	return strings.Join(entries, "\n\n")
}

func formatTranscriptDetail(t *fireflies.TranscriptDetail) string {
	participants := "Unknown"
	if len(t.Participants) > 0 {
		participants = strings.Join(t.Participants, ", ")
	}
	host := t.HostEmail
	if host == "" {
		host = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	fmt.Fprintf(&b, "**Date:** %s\n", t.Date.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "**Duration:** %d minutes\n", int(t.Duration/60+0.5))
	fmt.Fprintf(&b, "**Participants:** %s\n", participants)
	fmt.Fprintf(&b, "**Host:** %s\n", host)

	if t.Summary != nil {
		if t.Summary.Overview != "" {
			fmt.Fprintf(&b, "\n## Summary\n%s\n", t.Summary.Overview)
		}
		if len(t.Summary.ActionItems) > 0 {
			b.WriteString("\n## Action Items\n")
			for _, item := range t.Summary.ActionItems {
				fmt.Fprintf(&b, "- %s\n", item)
			}
		}
		if len(t.Summary.Keywords) > 0 {
			fmt.Fprintf(&b, "\n## Keywords\n%s\n", strings.Join(t.Summary.Keywords, ", "))
		}
	}

	if len(t.Sentences) > 0 {
		preview := t.Sentences
		if len(preview) > previewSentences {
			preview = preview[:previewSentences]
		}
		fmt.Fprintf(&b, "\n## Transcript Preview (first %d statements)\n", len(preview))
		for _, s := range preview {
			fmt.Fprintf(&b, "**%s:** %s\n", s.SpeakerName, s.Text)
		}
		if remaining := len(t.Sentences) - previewSentences; remaining > 0 {
			fmt.Fprintf(&b, "\n*... and %d more statements. Use transcript_url to access the full transcript.*", remaining)
		}
	}

	transcriptURL := t.TranscriptURL
	if transcriptURL == "" {
		transcriptURL = "Not available"
	}
	audioURL := t.AudioURL
	if audioURL == "" {
		audioURL = "Not available"
	}
	fmt.Fprintf(&b, "\n---\n**Transcript URL:** %s\n**Audio URL:** %s", transcriptURL, audioURL)

	return b.String()
}
