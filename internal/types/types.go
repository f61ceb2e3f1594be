// Package types holds the API request and response shapes.
package types

// HistoryMessage is one prior turn supplied by the client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ImageAttachment is a base64 image included with a chat message.
type ImageAttachment struct {
	MediaType string `json:"mediaType"`
	Data      string `json:"data"`
}

// ChatRequest is the POST /api/v1/chat body.
type ChatRequest struct {
	Message   string            `json:"message"`
	History   []HistoryMessage  `json:"history,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Images    []ImageAttachment `json:"images,omitempty"`
}

// Usage reports accumulated token counts for one chat turn.
type Usage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

// ChatResponse is the POST /api/v1/chat reply.
type ChatResponse struct {
	Content   string   `json:"content"`
	Usage     Usage    `json:"usage"`
	SessionID string   `json:"sessionId"`
	ToolsUsed []string `json:"toolsUsed,omitempty"`
}

// Session is one conversation in a listing.
type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// SessionListResponse is the GET /api/v1/sessions reply.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// Message is one stored chat turn.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// MessageListResponse is the GET /api/v1/sessions/{id}/messages reply.
type MessageListResponse struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}

// Settings is the user's assistant configuration.
type Settings struct {
	AssistantName string `json:"assistantName"`
	Personality   string `json:"personality"`
	Timezone      string `json:"timezone"`
	HasFireflies  bool   `json:"hasFirefliesKey"`
}

// UpdateSettingsRequest is the PUT /api/v1/settings body. Nil fields
// are left unchanged.
type UpdateSettingsRequest struct {
	AssistantName *string `json:"assistantName"`
	Personality   *string `json:"personality"`
	Timezone      *string `json:"timezone"`
}

// FirefliesKeyRequest is the PUT /api/v1/settings/fireflies-key body.
type FirefliesKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// IntegrationStatus describes one provider connection.
type IntegrationStatus struct {
	Provider       string   `json:"provider"`
	Connected      bool     `json:"connected"`
	ConnectedEmail string   `json:"connectedEmail,omitempty"`
	Scopes         []string `json:"scopes,omitempty"`
}

// IntegrationListResponse is the GET /api/v1/integrations reply.
type IntegrationListResponse struct {
	Integrations []IntegrationStatus `json:"integrations"`
}

// ConnectResponse carries the authorization URL for an OAuth connect.
type ConnectResponse struct {
	URL string `json:"url"`
}

// StatusResponse is a generic ok/message reply.
type StatusResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}
