// Package orchestrator runs the tool-use conversation loop: completion,
// tool dispatch, tool results, repeat, until the model answers in text.
package orchestrator

import (
	"context"
	"sync"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/tools"
)

// maxToolIterations bounds the loop so a model that keeps requesting
// tools cannot run forever.
const maxToolIterations = 10

// Request is one user turn to process.
type Request struct {
	UserID  string
	History []ai.Message
	Message string
	Images  []ai.ContentBlock
	System  string
	Tools   []ai.ToolDefinition
}

// Response is the final outcome of the loop.
type Response struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
	// ToolsUsed lists unique tool names in first-use order.
	ToolsUsed  []string
	Iterations int
}

// Orchestrator drives the loop against an injected completion client
// and tool registry.
type Orchestrator struct {
	client   ai.Client
	registry *tools.Registry
}

// New builds an orchestrator.
func New(client ai.Client, registry *tools.Registry) *Orchestrator {
	return &Orchestrator{client: client, registry: registry}
}

// Run processes one user turn. Completion transport errors propagate;
// tool failures are reported to the model as error results and never
// abort the loop. Hitting the iteration bound is a soft stop: whatever
// text the last completion produced is returned, possibly empty.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Response, error) {
	userContent := append([]ai.ContentBlock{ai.TextBlock(req.Message)}, req.Images...)
	messages := append(append([]ai.Message{}, req.History...),
		ai.Message{Role: ai.RoleUser, Content: userContent})

	out := &Response{}

	resp, err := o.complete(ctx, req, messages, out)
	if err != nil {
		return nil, err
	}

	for resp.HasToolUse() && out.Iterations < maxToolIterations {
		out.Iterations++

		messages = append(messages, ai.Message{Role: ai.RoleAssistant, Content: resp.Content})

		calls := resp.ToolCalls()
		results := o.dispatchAll(ctx, req.UserID, calls)
		o.recordToolUse(out, calls)

		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: results})

		if resp, err = o.complete(ctx, req, messages, out); err != nil {
			return nil, err
		}
	}

	if resp.HasToolUse() {
		logging.Warnf("tool loop hit iteration bound for user=%s", req.UserID)
	}

	out.Content = resp.TextContent()
	return out, nil
}

func (o *Orchestrator) complete(ctx context.Context, req *Request, messages []ai.Message, out *Response) (*ai.CompletionResponse, error) {
	resp, err := o.client.CreateCompletion(ctx, &ai.CompletionRequest{
		System:   req.System,
		Messages: messages,
		Tools:    req.Tools,
	})
	if err != nil {
		return nil, err
	}
	out.InputTokens += resp.InputTokens
	out.OutputTokens += resp.OutputTokens
	return resp, nil
}

// dispatchAll runs every requested tool call concurrently. Results are
// slot-indexed by the call they answer, so pairing holds no matter
// which call finishes first.
func (o *Orchestrator) dispatchAll(ctx context.Context, userID string, calls []ai.ToolCall) []ai.ContentBlock {
	results := make([]ai.ContentBlock, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ai.ToolCall) {
			defer wg.Done()
			result := o.registry.Dispatch(ctx, userID, call.Name, call.Input)
			results[i] = ai.ToolResultBlock(call.ID, result.Format(), !result.Success)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) recordToolUse(out *Response, calls []ai.ToolCall) {
	for _, call := range calls {
		seen := false
		for _, name := range out.ToolsUsed {
			if name == call.Name {
				seen = true
				break
			}
		}
		if !seen {
			out.ToolsUsed = append(out.ToolsUsed, call.Name)
		}
	}
}
