// Package asana exposes the user's Asana tasks as model tools.
package asana

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
	defaultBaseURL = "https://app.asana.com/api/1.0"

	notConnectedMsg = "Asana is not connected or the connection has expired. Please reconnect in settings."

	maxListLimit = 100
	maxNoteChars = 500
)

// Handler implements tools.Handler for Asana.
type Handler struct {
	tokens     token.Source
	baseURL    string
	httpClient *http.Client
}

// New builds an Asana handler over the given token source.
func New(tokens token.Source) *Handler {
	return &Handler{
		tokens:     tokens,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the handler at a different API origin (tests).
func (h *Handler) WithBaseURL(baseURL string) *Handler {
	h.baseURL = baseURL
	return h
}

func (h *Handler) Provider() oauth.Provider {
	return oauth.ProviderAsana
}

func (h *Handler) Definitions() []ai.ToolDefinition {
	return []ai.ToolDefinition{
		{
			Name:        "list_asana_tasks",
			Description: "List tasks from the user's Asana account. Can filter by project, assignee, or completion status.",
			InputSchema: tools.Schema(map[string]any{
				"projectId": map[string]any{
					"type":        "string",
					"description": "Filter by project ID (optional)",
				},
				"completed": map[string]any{
					"type":        "boolean",
					"description": "Filter by completion status. If not specified, returns incomplete tasks.",
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Maximum number of tasks to return (default: 20, max: 100)",
				},
			}),
		},
		{
			Name:        "get_asana_task",
			Description: "Get detailed information about a specific Asana task by its ID.",
			InputSchema: tools.Schema(map[string]any{
				"taskId": map[string]any{
					"type":        "string",
					"description": "The Asana task GID (global ID)",
				},
			}, "taskId"),
		},
		{
			Name:        "create_asana_task",
			Description: "Create a new task in Asana. Requires at minimum a task name. Optionally specify project, due date, and description.",
			InputSchema: tools.Schema(map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Task name/title",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Task description/notes (optional)",
				},
				"dueDate": map[string]any{
					"type":        "string",
					"description": "Due date in YYYY-MM-DD format (optional)",
				},
				"projectId": map[string]any{
					"type":        "string",
					"description": "Project GID to add the task to (optional)",
				},
			}, "name"),
		},
		{
			Name:        "complete_asana_task",
			Description: "Mark an Asana task as complete.",
			InputSchema: tools.Schema(map[string]any{
				"taskId": map[string]any{
					"type":        "string",
					"description": "The Asana task GID to mark as complete",
				},
			}, "taskId"),
		},
	}
}

type task struct {
	GID         string `json:"gid"`
	Name        string `json:"name"`
	Notes       string `json:"notes"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at"`
	DueOn       string `json:"due_on"`
	DueAt       string `json:"due_at"`
	CreatedAt   string `json:"created_at"`
	ModifiedAt  string `json:"modified_at"`
	Assignee    *struct {
		GID   string `json:"gid"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"assignee"`
	Projects []struct {
		GID  string `json:"gid"`
		Name string `json:"name"`
	} `json:"projects"`
	Tags []struct {
		GID  string `json:"gid"`
		Name string `json:"name"`
	} `json:"tags"`
	Workspace *struct {
		GID  string `json:"gid"`
		Name string `json:"name"`
	} `json:"workspace"`
	PermalinkURL string `json:"permalink_url"`
}

func (t *task) dueDate() string {
	if t.DueOn != "" {
		return t.DueOn
	}
	return t.DueAt
}

func (t *task) projectList() []map[string]string {
	if len(t.Projects) == 0 {
		return nil
	}
	out := make([]map[string]string, 0, len(t.Projects))
	for _, p := range t.Projects {
		out = append(out, map[string]string{"id": p.GID, "name": p.Name})
	}
	return out
}

func (h *Handler) Handle(ctx context.Context, userID, name string, input json.RawMessage) tools.Result {
	accessToken, err := h.tokens.AccessToken(ctx, userID, oauth.ProviderAsana)
	if err != nil {
		return tools.Fail(notConnectedMsg)
	}

	switch name {
	case "list_asana_tasks":
		var in struct {
			ProjectID string `json:"projectId"`
			Completed bool   `json:"completed"`
			Limit     int    `json:"limit"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid list_asana_tasks input")
		}
		return h.listTasks(ctx, accessToken, in.ProjectID, in.Completed, in.Limit)
	case "get_asana_task":
		var in struct {
			TaskID string `json:"taskId"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid get_asana_task input")
		}
		return h.getTask(ctx, accessToken, in.TaskID)
	case "create_asana_task":
		var in struct {
			Name      string `json:"name"`
			Notes     string `json:"notes"`
			DueDate   string `json:"dueDate"`
			ProjectID string `json:"projectId"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid create_asana_task input")
		}
		return h.createTask(ctx, accessToken, in.Name, in.Notes, in.DueDate, in.ProjectID)
	case "complete_asana_task":
		var in struct {
			TaskID string `json:"taskId"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return tools.Fail("invalid complete_asana_task input")
		}
		return h.completeTask(ctx, accessToken, in.TaskID)
	default:
		return tools.Failf("Unknown Asana tool: %s", name)
	}
}

type user struct {
	GID        string `json:"gid"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Workspaces []struct {
		GID  string `json:"gid"`
		Name string `json:"name"`
	} `json:"workspaces"`
}

func (h *Handler) currentUser(ctx context.Context, accessToken string) (*user, error) {
	var resp struct {
		Data user `json:"data"`
	}
	if err := h.do(ctx, accessToken, http.MethodGet, "/users/me?opt_fields=name,email,workspaces,workspaces.name", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (h *Handler) listTasks(ctx context.Context, accessToken, projectID string, completed bool, limit int) tools.Result {
	effectiveLimit := tools.ClampLimit(limit, 20, maxListLimit)

	me, err := h.currentUser(ctx, accessToken)
	if err != nil {
		logging.Errorf("asana users/me: %v", err)
		return tools.Fail("Failed to retrieve Asana user information")
	}
	if len(me.Workspaces) == 0 {
		return tools.Fail("No Asana workspace found for this user")
	}
	workspace := me.Workspaces[0]

	q := url.Values{}
	q.Set("limit", fmt.Sprint(effectiveLimit))
	q.Set("opt_fields", "name,completed,due_on,due_at,assignee,assignee.name,projects,projects.name,notes,permalink_url")
	if completed {
		q.Set("completed_since", "1970-01-01T00:00:00.000Z")
	} else {
		// "now" asks for incomplete tasks only.
		q.Set("completed_since", "now")
	}

	var path string
	if projectID != "" {
		path = "/projects/" + url.PathEscape(projectID) + "/tasks"
	} else {
		path = "/tasks"
		q.Set("workspace", workspace.GID)
		q.Set("assignee", "me")
	}

	var listResp struct {
		Data []task `json:"data"`
	}
	if err := h.do(ctx, accessToken, http.MethodGet, path+"?"+q.Encode(), nil, &listResp); err != nil {
		logging.Errorf("asana list: %v", err)
		return tools.Fail("Failed to retrieve tasks from Asana")
	}

	taskList := make([]map[string]any, 0, len(listResp.Data))
	for i := range listResp.Data {
		t := &listResp.Data[i]
		var assignee string
		if t.Assignee != nil {
			assignee = t.Assignee.Name
		}
		notes := tools.Clip(t.Notes, maxNoteChars)
		taskList = append(taskList, map[string]any{
			"id":        t.GID,
			"name":      t.Name,
			"notes":     notes,
			"completed": t.Completed,
			"dueDate":   t.dueDate(),
			"assignee":  assignee,
			"projects":  t.projectList(),
			"link":      t.PermalinkURL,
		})
	}

	return tools.OK(map[string]any{
		"tasks":     taskList,
		"total":     len(taskList),
		"workspace": workspace.Name,
	})
}

func (h *Handler) getTask(ctx context.Context, accessToken, taskID string) tools.Result {
	q := url.Values{}
	q.Set("opt_fields", "name,notes,completed,completed_at,due_on,due_at,created_at,modified_at,assignee,assignee.name,assignee.email,projects,projects.name,tags,tags.name,workspace,workspace.name,permalink_url")

	var resp struct {
		Data task `json:"data"`
	}
	err := h.do(ctx, accessToken, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"?"+q.Encode(), nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return tools.Fail("Task not found")
		}
		logging.Errorf("asana get: %v", err)
		return tools.Fail("Failed to retrieve task")
	}
	t := &resp.Data

	var assignee any
	if t.Assignee != nil {
		assignee = map[string]string{"name": t.Assignee.Name, "email": t.Assignee.Email}
	}
	var tags []map[string]string
	for _, tag := range t.Tags {
		tags = append(tags, map[string]string{"id": tag.GID, "name": tag.Name})
	}
	var workspace string
	if t.Workspace != nil {
		workspace = t.Workspace.Name
	}

	return tools.OK(map[string]any{
		"id":          t.GID,
		"name":        t.Name,
		"notes":       t.Notes,
		"completed":   t.Completed,
		"completedAt": t.CompletedAt,
		"dueDate":     t.dueDate(),
		"createdAt":   t.CreatedAt,
		"modifiedAt":  t.ModifiedAt,
		"assignee":    assignee,
		"projects":    t.projectList(),
		"tags":        tags,
		"workspace":   workspace,
		"link":        t.PermalinkURL,
	})
}

func (h *Handler) createTask(ctx context.Context, accessToken, name, notes, dueDate, projectID string) tools.Result {
	me, err := h.currentUser(ctx, accessToken)
	if err != nil {
		logging.Errorf("asana users/me: %v", err)
		return tools.Fail("Failed to retrieve Asana user information")
	}
	if len(me.Workspaces) == 0 {
		return tools.Fail("No Asana workspace found for this user")
	}

	taskData := map[string]any{
		"name":      name,
		"workspace": me.Workspaces[0].GID,
		"assignee":  "me",
	}
	if notes != "" {
		taskData["notes"] = notes
	}
	if dueDate != "" {
		taskData["due_on"] = dueDate
	}
	if projectID != "" {
		taskData["projects"] = []string{projectID}
	}

	var resp struct {
		Data task `json:"data"`
	}
	if err := h.do(ctx, accessToken, http.MethodPost, "/tasks", map[string]any{"data": taskData}, &resp); err != nil {
		logging.Errorf("asana create: %v", err)
		return tools.Fail("Failed to create task in Asana")
	}
	t := &resp.Data

	return tools.OK(map[string]any{
		"id":      t.GID,
		"name":    t.Name,
		"dueDate": t.DueOn,
		"link":    t.PermalinkURL,
		"message": fmt.Sprintf("Task %q created successfully", name),
	})
}

func (h *Handler) completeTask(ctx context.Context, accessToken, taskID string) tools.Result {
	body := map[string]any{"data": map[string]any{"completed": true}}

	var resp struct {
		Data task `json:"data"`
	}
	err := h.do(ctx, accessToken, http.MethodPut, "/tasks/"+url.PathEscape(taskID), body, &resp)
	if err != nil {
		if isNotFound(err) {
			return tools.Fail("Task not found")
		}
		logging.Errorf("asana complete: %v", err)
		return tools.Fail("Failed to complete task")
	}
	t := &resp.Data

	return tools.OK(map[string]any{
		"id":          t.GID,
		"name":        t.Name,
		"completed":   t.Completed,
		"completedAt": t.CompletedAt,
		"message":     fmt.Sprintf("Task %q marked as complete", t.Name),
	})
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("asana API returned %d: %s", e.status, e.body)
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

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{status: resp.StatusCode, body: string(respBody)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
