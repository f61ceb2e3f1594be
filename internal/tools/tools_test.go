package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
)

func TestMain(m *testing.M) {
	logging.Disable()
	m.Run()
}

type stubHandler struct {
	provider oauth.Provider
	names    []string
	handle   func(name string, input json.RawMessage) Result
}

func (h *stubHandler) Provider() oauth.Provider { return h.provider }

func (h *stubHandler) Definitions() []ai.ToolDefinition {
	defs := make([]ai.ToolDefinition, 0, len(h.names))
	for _, name := range h.names {
		defs = append(defs, ai.ToolDefinition{Name: name, InputSchema: Schema(map[string]any{})})
	}
	return defs
}

func (h *stubHandler) Handle(ctx context.Context, userID, name string, input json.RawMessage) Result {
	if h.handle != nil {
		return h.handle(name, input)
	}
	return OK(name)
}

func TestNewRegistryRejectsDuplicateNames(t *testing.T) {
	a := &stubHandler{provider: oauth.ProviderGoogle, names: []string{"search_emails"}}
	b := &stubHandler{provider: oauth.ProviderAsana, names: []string{"search_emails"}}

	if _, err := NewRegistry(a, b); err == nil {
		t.Fatal("expected duplicate tool name to fail registry construction")
	}
}

func TestRegistryCatalogOrder(t *testing.T) {
	a := &stubHandler{provider: oauth.ProviderGoogle, names: []string{"search_emails", "get_email"}}
	b := &stubHandler{provider: oauth.ProviderAsana, names: []string{"list_asana_tasks"}}

	reg, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	defs := reg.Definitions()
	if len(defs) != 3 {
		t.Fatalf("got %d definitions, want 3", len(defs))
	}
	want := []string{"search_emails", "get_email", "list_asana_tasks"}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("definition %d = %q, want %q", i, defs[i].Name, name)
		}
	}

	if p, ok := reg.Provider("list_asana_tasks"); !ok || p != oauth.ProviderAsana {
		t.Errorf("Provider(list_asana_tasks) = %v, %v", p, ok)
	}
	if _, ok := reg.Provider("nope"); ok {
		t.Error("Provider(nope) should not resolve")
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	reg, err := NewRegistry(&stubHandler{provider: oauth.ProviderGoogle, names: []string{"get_email"}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	res := reg.Dispatch(context.Background(), "user-1", "teleport", nil)
	if res.Success {
		t.Fatal("unknown tool should fail")
	}
	if res.Error != "Unknown tool: teleport" {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	h := &stubHandler{
		provider: oauth.ProviderGoogle,
		names:    []string{"get_email"},
		handle:   func(string, json.RawMessage) Result { panic("boom") },
	}
	reg, err := NewRegistry(h)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	res := reg.Dispatch(context.Background(), "user-1", "get_email", nil)
	if res.Success {
		t.Fatal("panicking handler should yield a failed result")
	}
	if !strings.Contains(res.Error, "get_email") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestResultFormat(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"failure", Fail("no access"), "Error: no access"},
		{"string data", OK("plain text"), `"plain text"`},
		{
			"object data",
			OK(map[string]any{"total": 2}),
			"{\n  \"total\": 2\n}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Format(); got != tt.want {
				t.Fatalf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"zero uses default", 0, 10},
		{"negative uses default", -5, 10},
		{"in range", 25, 25},
		{"above max clamps", 200, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampLimit(tt.n, 10, 50); got != tt.want {
				t.Fatalf("ClampLimit(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate(short) = %q", got)
	}
	got := Truncate(strings.Repeat("a", 20), 10)
	if !strings.HasPrefix(got, strings.Repeat("a", 10)) || !strings.HasSuffix(got, "[truncated]") {
		t.Fatalf("Truncate long = %q", got)
	}
}

func TestClipKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want string
	}{
		{"under limit", "héllo", 10, "héllo"},
		{"exact limit", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		// "é" is 2 bytes; a cut landing inside it backs up to the boundary.
		{"cut inside two-byte rune", "hé", 2, "h"},
		// "🙂" is 4 bytes starting at index 1.
		{"cut inside emoji", "a🙂b", 3, "a"},
		{"cut after emoji", "a🙂b", 5, "a🙂"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clip(tt.s, tt.n)
			if got != tt.want {
				t.Fatalf("Clip(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("Clip(%q, %d) = %q is not valid UTF-8", tt.s, tt.n, got)
			}
		})
	}
}
