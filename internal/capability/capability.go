// Package capability resolves which integrations a user has connected
// and filters the tool catalog and system prompt accordingly.
package capability

import (
	"context"
	"strings"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/db"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
	"github.com/adjutanthq/adjutant/internal/tools"
)

// Snapshot is a point-in-time view of a user's connected integrations.
type Snapshot struct {
	Google       bool
	GoogleScopes []string
	Asana        bool
	Fireflies    bool
}

// Resolver reads connection state. Resolution is a pure read; it never
// refreshes tokens or calls providers.
type Resolver struct {
	db *db.Store
}

// NewResolver builds a resolver over the store.
func NewResolver(database *db.Store) *Resolver {
	return &Resolver{db: database}
}

// Resolve builds the snapshot for a user. Lookup failures degrade to
// "not connected" so a storage hiccup narrows capabilities instead of
// failing the chat request.
func (r *Resolver) Resolve(ctx context.Context, userID string) Snapshot {
	var snap Snapshot

	integrations, err := r.db.ListIntegrations(ctx, userID)
	if err != nil {
		logging.Warnf("capability lookup for user=%s: %v", userID, err)
	}
	for _, integ := range integrations {
		switch oauth.Provider(integ.Provider) {
		case oauth.ProviderGoogle:
			snap.Google = true
			snap.GoogleScopes = integ.Scopes
		case oauth.ProviderAsana:
			snap.Asana = true
		}
	}

	settings, err := r.db.GetSettings(ctx, userID)
	if err != nil {
		logging.Warnf("capability settings lookup for user=%s: %v", userID, err)
	}
	if settings != nil && settings.FirefliesAPIKey != "" {
		snap.Fireflies = true
	}

	return snap
}

func (s Snapshot) hasGmailScope() bool {
	for _, scope := range s.GoogleScopes {
		if strings.Contains(scope, "gmail.readonly") ||
			strings.Contains(scope, "gmail.modify") ||
			strings.Contains(scope, "gmail.send") ||
			strings.Contains(scope, "mail.google.com") {
			return true
		}
	}
	return false
}

func (s Snapshot) hasCalendarScope() bool {
	for _, scope := range s.GoogleScopes {
		if strings.Contains(scope, "calendar") {
			return true
		}
	}
	return false
}

// gmailTools distinguishes the Gmail subset of Google tools; the rest
// of the Google catalog is calendar.
var gmailTools = map[string]bool{
	"search_emails": true,
	"get_email":     true,
	"send_email":    true,
}

// AllowedTools filters the registry's catalog down to tools the user's
// connections and scopes permit.
func (s Snapshot) AllowedTools(registry *tools.Registry) []ai.ToolDefinition {
	var allowed []ai.ToolDefinition
	for _, def := range registry.Definitions() {
		provider, ok := registry.Provider(def.Name)
		if !ok {
			continue
		}
		switch provider {
		case oauth.ProviderGoogle:
			if !s.Google {
				continue
			}
			if gmailTools[def.Name] {
				if s.hasGmailScope() {
					allowed = append(allowed, def)
				}
			} else if s.hasCalendarScope() {
				allowed = append(allowed, def)
			}
		case oauth.ProviderAsana:
			if s.Asana {
				allowed = append(allowed, def)
			}
		case oauth.ProviderFireflies:
			if s.Fireflies {
				allowed = append(allowed, def)
			}
		}
	}
	return allowed
}

// Summary renders the capability section of the system prompt. Returns
// "" when nothing is connected so the prompt can fall back to its
// no-integrations wording.
func (s Snapshot) Summary() string {
	var capabilities []string

	if s.Google {
		if s.hasGmailScope() {
			capabilities = append(capabilities,
				"- Search and read Gmail emails",
				"- Send emails on your behalf (with confirmation)")
		}
		if s.hasCalendarScope() {
			capabilities = append(capabilities,
				"- View and manage Google Calendar events",
				"- Create and update calendar events")
		}
	}
	if s.Asana {
		capabilities = append(capabilities,
			"- View and manage Asana tasks",
			"- Create new tasks and mark tasks complete")
	}
	if s.Fireflies {
		capabilities = append(capabilities,
			"- Access Fireflies.ai meeting transcripts",
			"- Search and retrieve meeting summaries, action items, and keywords")
	}

	if len(capabilities) == 0 {
		return ""
	}
	return "Connected integrations allow me to:\n" + strings.Join(capabilities, "\n")
}
