package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

// AnthropicClient implements Client over the official SDK. Construct it
// once at startup and inject it; an empty API key yields a client whose
// calls fail with ErrNotConfigured.
type AnthropicClient struct {
	client     anthropic.Client
	model      string
	maxTokens  int64
	configured bool
}

// NewAnthropicClient builds a client for the given model.
func NewAnthropicClient(apiKey, model string, maxTokens int64) *AnthropicClient {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicClient{
		client:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:      model,
		maxTokens:  maxTokens,
		configured: apiKey != "",
	}
}

// CreateCompletion sends one Messages API call.
func (c *AnthropicClient) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}

	messages, err := buildMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	out := &CompletionResponse{
		StopReason:   string(resp.StopReason),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content = append(out.Content, TextBlock(b.Text))
		case anthropic.ToolUseBlock:
			out.Content = append(out.Content, ContentBlock{
				Type:      BlockToolUse,
				ToolID:    b.ID,
				ToolName:  b.Name,
				ToolInput: json.RawMessage(b.JSON.Input.Raw()),
			})
		}
	}
	return out, nil
}

func buildMessages(msgs []Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		var blocks []anthropic.ContentBlockParamUnion
		for _, cb := range msg.Content {
			switch cb.Type {
			case BlockText:
				// The API rejects empty text blocks.
				if cb.Text == "" {
					continue
				}
				blocks = append(blocks, anthropic.NewTextBlock(cb.Text))
			case BlockImage:
				blocks = append(blocks, anthropic.NewImageBlockBase64(cb.MediaType, cb.Data))
			case BlockToolUse:
				var input map[string]any
				if err := json.Unmarshal(cb.ToolInput, &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    cb.ToolID,
						Name:  cb.ToolName,
						Input: input,
					},
				})
			case BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(cb.ToolID, cb.ToolResult, cb.ResultError))
			default:
				return nil, fmt.Errorf("unknown content block type %q", cb.Type)
			}
		}
		if len(blocks) == 0 {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		result = append(result, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return result, nil
}

func buildTools(defs []ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: def.InputSchema["properties"],
			},
		}
		switch required := def.InputSchema["required"].(type) {
		case []string:
			toolParam.InputSchema.Required = required
		case []any:
			reqStrings := make([]string, 0, len(required))
			for _, r := range required {
				if s, ok := r.(string); ok {
					reqStrings = append(reqStrings, s)
				}
			}
			toolParam.InputSchema.Required = reqStrings
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return tools
}
