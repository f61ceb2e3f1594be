package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
	"github.com/adjutanthq/adjutant/internal/tools"
)

func TestMain(m *testing.M) {
	logging.Disable()
	m.Run()
}

// scriptedClient returns canned responses in order and records the
// requests it saw.
type scriptedClient struct {
	responses []*ai.CompletionResponse
	err       error
	requests  []*ai.CompletionRequest
}

func (c *scriptedClient) CreateCompletion(ctx context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

// echoHandler answers every advertised tool with its own input.
type echoHandler struct {
	names []string
	fail  map[string]bool
	panic map[string]bool
}

func (h *echoHandler) Provider() oauth.Provider { return oauth.ProviderGoogle }

func (h *echoHandler) Definitions() []ai.ToolDefinition {
	defs := make([]ai.ToolDefinition, 0, len(h.names))
	for _, name := range h.names {
		defs = append(defs, ai.ToolDefinition{Name: name, InputSchema: tools.Schema(map[string]any{})})
	}
	return defs
}

func (h *echoHandler) Handle(ctx context.Context, userID, name string, input json.RawMessage) tools.Result {
	if h.panic[name] {
		panic("handler exploded")
	}
	if h.fail[name] {
		return tools.Failf("%s is down", name)
	}
	return tools.OK(map[string]any{"tool": name, "echo": string(input)})
}

func textResponse(text string, in, out int64) *ai.CompletionResponse {
	return &ai.CompletionResponse{
		Content:      []ai.ContentBlock{ai.TextBlock(text)},
		StopReason:   "end_turn",
		InputTokens:  in,
		OutputTokens: out,
	}
}

func toolResponse(calls ...ai.ToolCall) *ai.CompletionResponse {
	resp := &ai.CompletionResponse{StopReason: "tool_use", InputTokens: 10, OutputTokens: 5}
	for _, call := range calls {
		resp.Content = append(resp.Content, ai.ContentBlock{
			Type: ai.BlockToolUse, ToolID: call.ID, ToolName: call.Name, ToolInput: call.Input,
		})
	}
	return resp
}

func newRegistry(t *testing.T, h tools.Handler) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry(h)
	require.NoError(t, err)
	return reg
}

func TestRunPlainAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*ai.CompletionResponse{
		textResponse("hello there", 100, 20),
	}}
	reg := newRegistry(t, &echoHandler{names: []string{"search_emails"}})

	resp, err := New(client, reg).Run(context.Background(), &Request{
		UserID:  "user-1",
		Message: "hi",
		System:  "be nice",
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Content)
	require.Equal(t, int64(100), resp.InputTokens)
	require.Equal(t, int64(20), resp.OutputTokens)
	require.Empty(t, resp.ToolsUsed)
	require.Equal(t, 0, resp.Iterations)

	require.Len(t, client.requests, 1)
	require.Equal(t, "be nice", client.requests[0].System)
}

func TestRunToolLoop(t *testing.T) {
	client := &scriptedClient{responses: []*ai.CompletionResponse{
		toolResponse(
			ai.ToolCall{ID: "tu_1", Name: "search_emails", Input: []byte(`{"query":"q1"}`)},
			ai.ToolCall{ID: "tu_2", Name: "get_email", Input: []byte(`{"emailId":"e1"}`)},
		),
		textResponse("found two things", 50, 10),
	}}
	reg := newRegistry(t, &echoHandler{names: []string{"search_emails", "get_email"}})

	resp, err := New(client, reg).Run(context.Background(), &Request{
		UserID:  "user-1",
		Message: "look things up",
	})
	require.NoError(t, err)
	require.Equal(t, "found two things", resp.Content)
	require.Equal(t, 1, resp.Iterations)
	require.Equal(t, []string{"search_emails", "get_email"}, resp.ToolsUsed)
	require.Equal(t, int64(60), resp.InputTokens)
	require.Equal(t, int64(15), resp.OutputTokens)

	// Second completion carries the assistant turn plus one tool_result
	// turn with results paired to their call ids.
	require.Len(t, client.requests, 2)
	msgs := client.requests[1].Messages
	require.Len(t, msgs, 3)
	last := msgs[2]
	require.Equal(t, ai.RoleUser, last.Role)
	require.Len(t, last.Content, 2)
	require.Equal(t, "tu_1", last.Content[0].ToolID)
	require.Contains(t, last.Content[0].ToolResult, "q1")
	require.Equal(t, "tu_2", last.Content[1].ToolID)
	require.Contains(t, last.Content[1].ToolResult, "e1")
	require.False(t, last.Content[0].ResultError)
}

func TestRunToolFailureFeedsModel(t *testing.T) {
	client := &scriptedClient{responses: []*ai.CompletionResponse{
		toolResponse(ai.ToolCall{ID: "tu_1", Name: "search_emails", Input: []byte(`{}`)}),
		textResponse("sorry, search is down", 10, 5),
	}}
	reg := newRegistry(t, &echoHandler{
		names: []string{"search_emails"},
		fail:  map[string]bool{"search_emails": true},
	})

	resp, err := New(client, reg).Run(context.Background(), &Request{UserID: "u", Message: "go"})
	require.NoError(t, err)
	require.Equal(t, "sorry, search is down", resp.Content)

	result := client.requests[1].Messages[2].Content[0]
	require.True(t, result.ResultError)
	require.Equal(t, "Error: search_emails is down", result.ToolResult)
}

func TestRunHandlerPanicBecomesResult(t *testing.T) {
	client := &scriptedClient{responses: []*ai.CompletionResponse{
		toolResponse(ai.ToolCall{ID: "tu_1", Name: "search_emails", Input: []byte(`{}`)}),
		textResponse("that did not work", 10, 5),
	}}
	reg := newRegistry(t, &echoHandler{
		names: []string{"search_emails"},
		panic: map[string]bool{"search_emails": true},
	})

	resp, err := New(client, reg).Run(context.Background(), &Request{UserID: "u", Message: "go"})
	require.NoError(t, err)
	require.Equal(t, "that did not work", resp.Content)

	result := client.requests[1].Messages[2].Content[0]
	require.True(t, result.ResultError)
	require.Contains(t, result.ToolResult, "failed unexpectedly")
}

func TestRunUnknownToolBecomesResult(t *testing.T) {
	client := &scriptedClient{responses: []*ai.CompletionResponse{
		toolResponse(ai.ToolCall{ID: "tu_1", Name: "launch_rockets", Input: []byte(`{}`)}),
		textResponse("no such tool", 10, 5),
	}}
	reg := newRegistry(t, &echoHandler{names: []string{"search_emails"}})

	_, err := New(client, reg).Run(context.Background(), &Request{UserID: "u", Message: "go"})
	require.NoError(t, err)

	result := client.requests[1].Messages[2].Content[0]
	require.True(t, result.ResultError)
	require.Equal(t, "Error: Unknown tool: launch_rockets", result.ToolResult)
}

func TestRunIterationBound(t *testing.T) {
	// The script's last response repeats forever: the model never stops
	// asking for tools.
	client := &scriptedClient{responses: []*ai.CompletionResponse{
		toolResponse(ai.ToolCall{ID: "tu", Name: "search_emails", Input: []byte(`{}`)}),
	}}
	reg := newRegistry(t, &echoHandler{names: []string{"search_emails"}})

	resp, err := New(client, reg).Run(context.Background(), &Request{UserID: "u", Message: "go"})
	require.NoError(t, err)
	require.Equal(t, 10, resp.Iterations)
	// 1 initial + 10 loop completions.
	require.Len(t, client.requests, 11)
	// Soft stop: no text produced is still not an error.
	require.Equal(t, "", resp.Content)
	require.Equal(t, []string{"search_emails"}, resp.ToolsUsed)
}

func TestRunToolsUsedDeduped(t *testing.T) {
	client := &scriptedClient{responses: []*ai.CompletionResponse{
		toolResponse(ai.ToolCall{ID: "a1", Name: "get_email", Input: []byte(`{}`)}),
		toolResponse(
			ai.ToolCall{ID: "b1", Name: "search_emails", Input: []byte(`{}`)},
			ai.ToolCall{ID: "b2", Name: "get_email", Input: []byte(`{}`)},
		),
		textResponse("done", 1, 1),
	}}
	reg := newRegistry(t, &echoHandler{names: []string{"search_emails", "get_email"}})

	resp, err := New(client, reg).Run(context.Background(), &Request{UserID: "u", Message: "go"})
	require.NoError(t, err)
	require.Equal(t, []string{"get_email", "search_emails"}, resp.ToolsUsed)
}

func TestRunCompletionErrorPropagates(t *testing.T) {
	client := &scriptedClient{err: ai.ErrNotConfigured}
	reg := newRegistry(t, &echoHandler{names: []string{"search_emails"}})

	_, err := New(client, reg).Run(context.Background(), &Request{UserID: "u", Message: "go"})
	require.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestRunHistoryPrecedesMessage(t *testing.T) {
	client := &scriptedClient{responses: []*ai.CompletionResponse{
		textResponse("ok", 1, 1),
	}}
	reg := newRegistry(t, &echoHandler{names: []string{"search_emails"}})

	history := []ai.Message{
		ai.UserText("earlier question"),
		{Role: ai.RoleAssistant, Content: []ai.ContentBlock{ai.TextBlock("earlier answer")}},
	}
	_, err := New(client, reg).Run(context.Background(), &Request{
		UserID:  "u",
		History: history,
		Message: "new question",
	})
	require.NoError(t, err)

	msgs := client.requests[0].Messages
	require.Len(t, msgs, 3)
	require.Equal(t, "earlier question", msgs[0].Content[0].Text)
	require.Equal(t, "earlier answer", msgs[1].Content[0].Text)
	require.Equal(t, "new question", msgs[2].Content[0].Text)
}

func TestRunManyConcurrentToolCalls(t *testing.T) {
	var calls []ai.ToolCall
	for i := 0; i < 8; i++ {
		calls = append(calls, ai.ToolCall{
			ID:    fmt.Sprintf("tu_%d", i),
			Name:  "search_emails",
			Input: []byte(fmt.Sprintf(`{"query":"q%d"}`, i)),
		})
	}
	client := &scriptedClient{responses: []*ai.CompletionResponse{
		toolResponse(calls...),
		textResponse("done", 1, 1),
	}}
	reg := newRegistry(t, &echoHandler{names: []string{"search_emails"}})

	_, err := New(client, reg).Run(context.Background(), &Request{UserID: "u", Message: "go"})
	require.NoError(t, err)

	results := client.requests[1].Messages[2].Content
	require.Len(t, results, 8)
	for i, result := range results {
		require.Equal(t, fmt.Sprintf("tu_%d", i), result.ToolID)
		require.True(t, strings.Contains(result.ToolResult, fmt.Sprintf("q%d", i)))
	}
}
