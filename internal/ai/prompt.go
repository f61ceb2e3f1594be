package ai

import (
	"fmt"
	"strings"
	"time"
)

// PromptOptions feed the system prompt. Capabilities is the rendered
// integration capability section, empty when nothing is connected.
type PromptOptions struct {
	AssistantName string
	Personality   string
	Timezone      string
	Capabilities  string
	Now           time.Time
}

// BuildSystemPrompt renders the assistant's system prompt from the
// user's settings and connected integrations.
func BuildSystemPrompt(opts PromptOptions) string {
	name := opts.AssistantName
	if name == "" {
		name = "Chief of Staff"
	}
	tz := opts.Timezone
	if tz == "" {
		tz = "America/Phoenix"
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		now = now.In(loc)
	}

	currentDate := now.Format("Monday, January 2, 2006")
	currentTime := now.Format("3:04 PM")

	var capabilitiesSection string
	if opts.Capabilities != "" {
		capabilitiesSection = fmt.Sprintf(`Your capabilities include:
- Answering questions and having helpful conversations
- Remembering information the user shares with you

%s

When using tools:
- Always confirm before sending emails or making significant changes
- Provide clear summaries of what you found or did
- If a tool fails, explain the issue and suggest next steps`, opts.Capabilities)
	} else {
		capabilitiesSection = `Your capabilities include:
- Answering questions and having helpful conversations
- Remembering information the user shares with you

No integrations are currently connected. The user can connect Gmail, Google Calendar, and Asana in Settings to unlock additional capabilities.`
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a helpful AI executive assistant. You help the user manage their calendar, emails, and tasks.\n\n", name)
	fmt.Fprintf(&b, "Today is %s. The current time is %s. The user's timezone is %s.\n\n", currentDate, currentTime, tz)
	b.WriteString(capabilitiesSection)
	b.WriteString("\n\nBe concise, professional, and helpful. If you don't know something, say so.")
	if opts.Personality != "" {
		fmt.Fprintf(&b, "\n\nAdditional personality/communication style notes from the user: %s", opts.Personality)
	}
	return b.String()
}
