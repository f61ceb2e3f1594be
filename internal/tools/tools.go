// Package tools routes model tool calls to integration handlers.
//
// Every failure crossing the dispatch boundary is a Result value; a tool
// call can never panic the conversation loop or abort the request.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
)

// Result is the outcome of one tool call.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps data in a successful result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed result.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Failf builds a failed result with formatting.
func Failf(format string, args ...any) Result {
	return Fail(fmt.Sprintf(format, args...))
}

// Format renders the result as model-visible text: pretty-printed JSON
// on success, "Error: <msg>" on failure.
func (r Result) Format() string {
	if !r.Success {
		return "Error: " + r.Error
	}
	data, err := json.MarshalIndent(r.Data, "", "  ")
	if err != nil {
		return "Error: failed to encode tool result"
	}
	return string(data)
}

// Handler serves the tools of one provider.
type Handler interface {
	Provider() oauth.Provider
	Definitions() []ai.ToolDefinition
	Handle(ctx context.Context, userID, name string, input json.RawMessage) Result
}

// Registry maps tool names to handlers. Routing is total: every name a
// handler advertises resolves, and the mapping is validated once at
// construction rather than discovered per call.
type Registry struct {
	handlers map[string]Handler
	catalog  []ai.ToolDefinition
}

// NewRegistry indexes the handlers' tool definitions. It fails if two
// handlers advertise the same tool name.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[string]Handler)}
	for _, h := range handlers {
		for _, def := range h.Definitions() {
			if def.Name == "" {
				return nil, fmt.Errorf("provider %s advertises a tool with no name", h.Provider())
			}
			if prev, ok := r.handlers[def.Name]; ok {
				return nil, fmt.Errorf("tool %q claimed by both %s and %s",
					def.Name, prev.Provider(), h.Provider())
			}
			r.handlers[def.Name] = h
			r.catalog = append(r.catalog, def)
		}
	}
	return r, nil
}

// Definitions returns the full tool catalog in registration order.
func (r *Registry) Definitions() []ai.ToolDefinition {
	return r.catalog
}

// Provider returns the provider owning a tool name.
func (r *Registry) Provider(name string) (oauth.Provider, bool) {
	h, ok := r.handlers[name]
	if !ok {
		return "", false
	}
	return h.Provider(), true
}

// Dispatch routes one tool call. Unknown names and handler panics come
// back as failed results.
func (r *Registry) Dispatch(ctx context.Context, userID, name string, input json.RawMessage) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logging.Errorf("tool %s panicked: %v", name, p)
			res = Failf("tool %s failed unexpectedly", name)
		}
	}()

	h, ok := r.handlers[name]
	if !ok {
		return Failf("Unknown tool: %s", name)
	}
	return h.Handle(ctx, userID, name, input)
}

// Schema builds a JSON schema object for a tool definition.
func Schema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ClampLimit applies a default and upper bound to a requested page size.
func ClampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Clip cuts s to at most n bytes without splitting a UTF-8 rune.
func Clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Truncate cuts s to at most n bytes, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return Clip(s, n) + "... [truncated]"
}
