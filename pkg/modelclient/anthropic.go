// Package modelclient implements the orchestrator's model boundary against
// the Anthropic Messages API.
package modelclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/syllabot/syllabot/pkg/chat"
	"github.com/syllabot/syllabot/pkg/tool"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-sonnet-20241022"

// DefaultMaxTokens bounds the answer length per model call.
const DefaultMaxTokens = 800

// Anthropic is a ModelClient backed by the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// Config holds Anthropic client configuration.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// NewAnthropic creates an Anthropic model client.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &Anthropic{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Send performs one Messages API call. Tools are attached only when the
// request offers schemas under an auto tool-choice; ToolChoiceNone (or an
// empty schema list) withholds them, which forces a text answer.
func (a *Anthropic) Send(ctx context.Context, req chat.Request) (chat.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(0),
		Messages:    buildMessages(req.Messages),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if len(req.Tools) > 0 && req.ToolChoice != chat.ToolChoiceNone {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return chat.Response{}, fmt.Errorf("anthropic message create: %w", err)
	}

	return parseResponse(resp)
}

// buildMessages converts conversation messages to Anthropic wire format.
func buildMessages(messages []chat.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))
		for _, block := range msg.Blocks {
			switch b := block.(type) {
			case chat.Text:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case chat.ToolUse:
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ID, b.Params, b.Name))
			case chat.ToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, b.Text, b.IsError))
			}
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == chat.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}

	return out
}

// buildTools converts registry schemas to Anthropic tool definitions.
func buildTools(schemas []tool.Schema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(schemas))

	for _, s := range schemas {
		input := s.InputSchema()
		param := anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(s.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: input["properties"],
			},
		}
		if required, ok := input["required"].([]string); ok {
			param.InputSchema.Required = required
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}

	return out
}

// parseResponse maps an API response onto the tagged response variant.
func parseResponse(resp *anthropic.Message) (chat.Response, error) {
	out := chat.Response{
		Stop: chat.StopEnd,
		Usage: chat.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}

	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += b.Text
		case anthropic.ToolUseBlock:
			var params map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &params); err != nil {
				return chat.Response{}, fmt.Errorf("failed to parse tool input for %q: %w", b.Name, err)
			}
			out.Invocations = append(out.Invocations, chat.ToolUse{
				ID:     b.ID,
				Name:   b.Name,
				Params: params,
			})
		}
	}

	if len(out.Invocations) > 0 {
		out.Stop = chat.StopToolUse
	}

	return out, nil
}
