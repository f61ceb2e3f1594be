// Package ai defines the completion client used by the conversation
// loop and its Anthropic implementation.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotConfigured is returned when no API key is configured. The chat
// endpoint maps it to a 503.
var ErrNotConfigured = errors.New("AI service not configured")

// Client produces one completion per call. Implementations must be safe
// for concurrent use.
type Client interface {
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// Role of a conversation message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Block types.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one unit of message content. Type selects which
// fields are meaningful.
type ContentBlock struct {
	Type string

	// BlockText
	Text string

	// BlockImage (base64 data)
	MediaType string
	Data      string

	// BlockToolUse
	ToolID    string
	ToolName  string
	ToolInput json.RawMessage

	// BlockToolResult
	ToolResult  string
	ResultError bool
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock builds a base64 image content block.
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Type: BlockImage, MediaType: mediaType, Data: data}
}

// ToolResultBlock builds a tool result block answering the given call id.
func ToolResultBlock(toolID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolID: toolID, ToolResult: content, ResultError: isError}
}

// Message is one conversation turn.
type Message struct {
	Role    string
	Content []ContentBlock
}

// UserText builds a single-text-block user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// ToolDefinition describes a tool visible to the model. InputSchema is a
// JSON schema object with "properties" and optionally "required".
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// CompletionRequest is one model call.
type CompletionRequest struct {
	System    string
	Messages  []Message
	Tools     []ToolDefinition
	MaxTokens int64
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content      []ContentBlock
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// TextContent joins the response's text blocks with newlines.
func (r *CompletionResponse) TextContent() string {
	var parts []string
	for _, b := range r.Content {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolCalls extracts the tool_use blocks in order.
func (r *CompletionResponse) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			calls = append(calls, ToolCall{ID: b.ToolID, Name: b.ToolName, Input: b.ToolInput})
		}
	}
	return calls
}

// HasToolUse reports whether the model requested any tool calls.
func (r *CompletionResponse) HasToolUse() bool {
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			return true
		}
	}
	return false
}
