// Package calendar exposes the user's Google Calendar as model tools.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/adjutanthq/adjutant/internal/ai"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/oauth"
	"github.com/adjutanthq/adjutant/internal/token"
	"github.com/adjutanthq/adjutant/internal/tools"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"

	notConnectedMsg = "Google Calendar is not connected or the connection has expired. Please reconnect in settings."

	maxListResults = 50
)

// Handler implements tools.Handler for Google Calendar.
type Handler struct {
	tokens     token.Source
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// New builds a Calendar handler over the given token source.
func New(tokens token.Source) *Handler {
	return &Handler{
		tokens:     tokens,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// WithBaseURL points the handler at a different API origin (tests).
func (h *Handler) WithBaseURL(baseURL string) *Handler {
	h.baseURL = baseURL
	return h
}

func (h *Handler) Provider() oauth.Provider {
	return oauth.ProviderGoogle
}

func (h *Handler) Definitions() []ai.ToolDefinition {
	return []ai.ToolDefinition{
		{
			Name:        "list_calendar_events",
			Description: "List upcoming calendar events from the user's Google Calendar. Returns events within a specified time range.",
			InputSchema: tools.Schema(map[string]any{
				"timeMin": map[string]any{
					"type":        "string",
					"description": "Start time for the query in ISO 8601 format (e.g., '2024-01-15T00:00:00Z'). Defaults to now.",
				},
				"timeMax": map[string]any{
					"type":        "string",
					"description": "End time for the query in ISO 8601 format. Defaults to 7 days from now.",
				},
				"maxResults": map[string]any{
					"type":        "number",
					"description": "Maximum number of events to return (default: 10, max: 50)",
				},
				"calendarId": map[string]any{
					"type":        "string",
					"description": "Calendar ID to query (default: 'primary')",
				},
			}),
		},
		{
			Name:        "get_calendar_event",
			Description: "Get detailed information about a specific calendar event by its ID.",
			InputSchema: tools.Schema(map[string]any{
				"eventId": map[string]any{
					"type":        "string",
					"description": "The Google Calendar event ID",
				},
				"calendarId": map[string]any{
					"type":        "string",
					"description": "Calendar ID (default: 'primary')",
				},
			}, "eventId"),
		},
		{
			Name:        "create_calendar_event",
			Description: "Create a new event on the user's Google Calendar. Requires at minimum a summary/title and start time.",
			InputSchema: tools.Schema(map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": "Event title/summary",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Event description (optional)",
				},
				"location": map[string]any{
					"type":        "string",
					"description": "Event location (optional)",
				},
				"startDateTime": map[string]any{
					"type":        "string",
					"description": "Start time in ISO 8601 format (e.g., '2024-01-15T10:00:00-07:00')",
				},
				"endDateTime": map[string]any{
					"type":        "string",
					"description": "End time in ISO 8601 format. If not provided, defaults to 1 hour after start.",
				},
				"attendees": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "List of attendee email addresses (optional)",
				},
				"calendarId": map[string]any{
					"type":        "string",
					"description": "Calendar ID (default: 'primary')",
				},
			}, "summary", "startDateTime"),
		},
		{
			Name:        "update_calendar_event",
			Description: "Update an existing calendar event. Only provided fields will be updated.",
			InputSchema: tools.Schema(map[string]any{
				"eventId": map[string]any{
					"type":        "string",
					"description": "The Google Calendar event ID to update",
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "New event title/summary",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "New event description",
				},
				"location": map[string]any{
					"type":        "string",
					"description": "New event location",
				},
				"startDateTime": map[string]any{
					"type":        "string",
					"description": "New start time in ISO 8601 format",
				},
				"endDateTime": map[string]any{
					"type":        "string",
					"description": "New end time in ISO 8601 format",
				},
				"calendarId": map[string]any{
					"type":        "string",
					"description": "Calendar ID (default: 'primary')",
				},
			}, "eventId"),
		},
	}
}

type event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Start       *eventTime `json:"start"`
	End         *eventTime `json:"end"`
	Attendees   []struct {
		Email          string `json:"email"`
		DisplayName    string `json:"displayName"`
		ResponseStatus string `json:"responseStatus"`
	} `json:"attendees"`
	Organizer *struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	} `json:"organizer"`
	HTMLLink string `json:"htmlLink"`
	Status   string `json:"status"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
}

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

func (t *eventTime) when() string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

func (e *event) title() string {
	if e.Summary == "" {
		return "(No title)"
	}
	return e.Summary
}

func (e *event) isAllDay() bool {
	return e.Start == nil || e.Start.DateTime == ""
}

func (e *event) attendeeList() []map[string]string {
	if len(e.Attendees) == 0 {
		return nil
	}
	out := make([]map[string]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		out = append(out, map[string]string{
			"email":  a.Email,
			"name":   a.DisplayName,
			"status": a.ResponseStatus,
		})
	}
	return out
}

func (h *Handler) Handle(ctx context.Context, userID, name string, input json.RawMessage) tools.Result {
	accessToken, err := h.tokens.AccessToken(ctx, userID, oauth.ProviderGoogle)
	if err != nil {
		return tools.Fail(notConnectedMsg)
	}

	switch name {
	case "list_calendar_events":
		var in struct {
			TimeMin    string `json:"timeMin"`
			TimeMax    string `json:"timeMax"`
			MaxResults int    `json:"maxResults"`
			CalendarID string `json:"calendarId"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid list_calendar_events input")
		}
		return h.listEvents(ctx, accessToken, in.TimeMin, in.TimeMax, in.MaxResults, in.CalendarID)
	case "get_calendar_event":
		var in struct {
			EventID    string `json:"eventId"`
			CalendarID string `json:"calendarId"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid get_calendar_event input")
		}
		return h.getEvent(ctx, accessToken, in.EventID, in.CalendarID)
	case "create_calendar_event":
		var in struct {
			Summary       string   `json:"summary"`
			Description   string   `json:"description"`
			Location      string   `json:"location"`
			StartDateTime string   `json:"startDateTime"`
			EndDateTime   string   `json:"endDateTime"`
			Attendees     []string `json:"attendees"`
			CalendarID    string   `json:"calendarId"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid create_calendar_event input")
		}
		return h.createEvent(ctx, accessToken, createEventParams{
			summary:       in.Summary,
			description:   in.Description,
			location:      in.Location,
			startDateTime: in.StartDateTime,
			endDateTime:   in.EndDateTime,
			attendees:     in.Attendees,
			calendarID:    in.CalendarID,
		})
	case "update_calendar_event":
		var in struct {
			EventID       string  `json:"eventId"`
			Summary       *string `json:"summary"`
			Description   *string `json:"description"`
			Location      *string `json:"location"`
			StartDateTime string  `json:"startDateTime"`
			EndDateTime   string  `json:"endDateTime"`
			CalendarID    string  `json:"calendarId"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid update_calendar_event input")
		}
		return h.updateEvent(ctx, accessToken, updateEventParams{
			eventID:       in.EventID,
			summary:       in.Summary,
			description:   in.Description,
			location:      in.Location,
			startDateTime: in.StartDateTime,
			endDateTime:   in.EndDateTime,
			calendarID:    in.CalendarID,
		})
	default:
		return tools.Failf("Unknown Calendar tool: %s", name)
	}
}

func calendarOrPrimary(id string) string {
	if id == "" {
		return "primary"
	}
	return id
}

func (h *Handler) listEvents(ctx context.Context, accessToken, timeMin, timeMax string, maxResults int, calendarID string) tools.Result {
	now := h.now().UTC()
	if timeMin == "" {
		timeMin = now.Format(time.RFC3339)
	}
	if timeMax == "" {
		timeMax = now.Add(7 * 24 * time.Hour).Format(time.RFC3339)
	}
	limit := tools.ClampLimit(maxResults, 10, maxListResults)

	q := url.Values{}
	q.Set("timeMin", timeMin)
	q.Set("timeMax", timeMax)
	q.Set("maxResults", fmt.Sprint(limit))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	var listResp struct {
		Items []event `json:"items"`
	}
	path := "/calendars/" + url.PathEscape(calendarOrPrimary(calendarID)) + "/events?" + q.Encode()
	if err := h.do(ctx, accessToken, http.MethodGet, path, nil, &listResp); err != nil {
		logging.Errorf("calendar list: %v", err)
		return tools.Fail("Failed to retrieve calendar events")
	}

	events := make([]map[string]any, 0, len(listResp.Items))
	for i := range listResp.Items {
		e := &listResp.Items[i]
		events = append(events, map[string]any{
			"id":          e.ID,
			"summary":     e.title(),
			"description": e.Description,
			"location":    e.Location,
			"start":       e.Start.when(),
			"end":         e.End.when(),
			"isAllDay":    e.isAllDay(),
			"attendees":   e.attendeeList(),
			"link":        e.HTMLLink,
		})
	}

	return tools.OK(map[string]any{
		"events":    events,
		"total":     len(events),
		"timeRange": map[string]string{"from": timeMin, "to": timeMax},
	})
}

func (h *Handler) getEvent(ctx context.Context, accessToken, eventID, calendarID string) tools.Result {
	var e event
	path := "/calendars/" + url.PathEscape(calendarOrPrimary(calendarID)) + "/events/" + url.PathEscape(eventID)
	if err := h.do(ctx, accessToken, http.MethodGet, path, nil, &e); err != nil {
		if isNotFound(err) {
			return tools.Fail("Event not found")
		}
		logging.Errorf("calendar get: %v", err)
		return tools.Fail("Failed to retrieve event")
	}

	return tools.OK(map[string]any{
		"id":          e.ID,
		"summary":     e.title(),
		"description": e.Description,
		"location":    e.Location,
		"start":       e.Start.when(),
		"end":         e.End.when(),
		"isAllDay":    e.isAllDay(),
		"attendees":   e.attendeeList(),
		"organizer":   e.Organizer,
		"link":        e.HTMLLink,
		"status":      e.Status,
		"created":     e.Created,
		"updated":     e.Updated,
	})
}

type createEventParams struct {
	summary       string
	description   string
	location      string
	startDateTime string
	endDateTime   string
	attendees     []string
	calendarID    string
}

func (h *Handler) createEvent(ctx context.Context, accessToken string, p createEventParams) tools.Result {
	start, err := time.Parse(time.RFC3339, p.startDateTime)
	if err != nil {
		return tools.Fail("Invalid start time; use ISO 8601 format")
	}
	end := start.Add(time.Hour)
	if p.endDateTime != "" {
		if end, err = time.Parse(time.RFC3339, p.endDateTime); err != nil {
			return tools.Fail("Invalid end time; use ISO 8601 format")
		}
	}

	body := map[string]any{
		"summary": p.summary,
		"start":   map[string]string{"dateTime": start.Format(time.RFC3339)},
		"end":     map[string]string{"dateTime": end.Format(time.RFC3339)},
	}
	if p.description != "" {
		body["description"] = p.description
	}
	if p.location != "" {
		body["location"] = p.location
	}
	if len(p.attendees) > 0 {
		attendees := make([]map[string]string, 0, len(p.attendees))
		for _, email := range p.attendees {
			attendees = append(attendees, map[string]string{"email": email})
		}
		body["attendees"] = attendees
	}

	var e event
	path := "/calendars/" + url.PathEscape(calendarOrPrimary(p.calendarID)) + "/events"
	if err := h.do(ctx, accessToken, http.MethodPost, path, body, &e); err != nil {
		logging.Errorf("calendar create: %v", err)
		return tools.Fail("Failed to create calendar event")
	}

	return tools.OK(map[string]any{
		"id":      e.ID,
		"summary": e.Summary,
		"start":   e.Start.when(),
		"end":     e.End.when(),
		"link":    e.HTMLLink,
		"message": fmt.Sprintf("Event %q created successfully", p.summary),
	})
}

type updateEventParams struct {
	eventID       string
	summary       *string
	description   *string
	location      *string
	startDateTime string
	endDateTime   string
	calendarID    string
}

// updateEvent reads the current event, merges the provided fields, and
// writes the whole event back (the events API has no PATCH-merge for
// start/end pairs).
func (h *Handler) updateEvent(ctx context.Context, accessToken string, p updateEventParams) tools.Result {
	path := "/calendars/" + url.PathEscape(calendarOrPrimary(p.calendarID)) + "/events/" + url.PathEscape(p.eventID)

	var current event
	if err := h.do(ctx, accessToken, http.MethodGet, path, nil, &current); err != nil {
		if isNotFound(err) {
			return tools.Fail("Event not found")
		}
		logging.Errorf("calendar update read: %v", err)
		return tools.Fail("Failed to retrieve event for update")
	}

	body := map[string]any{
		"summary":     current.Summary,
		"description": current.Description,
		"location":    current.Location,
		"start":       current.Start,
		"end":         current.End,
	}
	if p.summary != nil {
		body["summary"] = *p.summary
	}
	if p.description != nil {
		body["description"] = *p.description
	}
	if p.location != nil {
		body["location"] = *p.location
	}
	if p.startDateTime != "" {
		start, err := time.Parse(time.RFC3339, p.startDateTime)
		if err != nil {
			return tools.Fail("Invalid start time; use ISO 8601 format")
		}
		body["start"] = map[string]string{"dateTime": start.Format(time.RFC3339)}
	}
	if p.endDateTime != "" {
		end, err := time.Parse(time.RFC3339, p.endDateTime)
		if err != nil {
			return tools.Fail("Invalid end time; use ISO 8601 format")
		}
		body["end"] = map[string]string{"dateTime": end.Format(time.RFC3339)}
	}

	var e event
	if err := h.do(ctx, accessToken, http.MethodPut, path, body, &e); err != nil {
		logging.Errorf("calendar update: %v", err)
		return tools.Fail("Failed to update calendar event")
	}

	return tools.OK(map[string]any{
		"id":      e.ID,
		"summary": e.Summary,
		"start":   e.Start.when(),
		"end":     e.End.when(),
		"link":    e.HTMLLink,
		"message": fmt.Sprintf("Event %q updated successfully", e.Summary),
	})
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("calendar API returned %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func (h *Handler) do(ctx context.Context, accessToken, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{status: resp.StatusCode, body: string(respBody)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
