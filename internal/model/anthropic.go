package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client against the Anthropic Claude Messages
// API. Router sends it every request whose model identifier carries the
// "claude-" prefix and is not a Bedrock model.
type AnthropicClient struct {
	msg          *sdk.MessageService
	defaultModel string
	maxTokens    int
}

// AnthropicOptions configures the adapter.
type AnthropicOptions struct {
	APIKey       string
	DefaultModel string
	MaxTokens    int
}

// NewAnthropicClient builds an AnthropicClient from resolved configuration.
func NewAnthropicClient(opts AnthropicOptions) (*AnthropicClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("model: ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("model: default model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	ac := sdk.NewClient(option.WithAPIKey(opts.APIKey))
	return &AnthropicClient{msg: &ac.Messages, defaultModel: opts.DefaultModel, maxTokens: maxTokens}, nil
}

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("model: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	var system []sdk.TextBlockParam
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, sdk.TextBlockParam{Text: m.Content})
		case "assistant":
			msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		case "tool":
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	if req.Instructions != "" {
		system = append([]sdk.TextBlockParam{{Text: req.Instructions}}, system...)
	}

	tools := make([]sdk.ToolUnionParam, 0, len(req.Tools))
	for _, t := range req.Tools {
		var schema any
		if t.InputSchema != "" {
			if err := json.Unmarshal([]byte(t.InputSchema), &schema); err != nil {
				return Response{}, fmt.Errorf("model: unmarshal tool schema for %s: %w", t.Name, err)
			}
		}
		tools = append(tools, sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
			Properties: schema,
		}, t.Name))
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(c.maxTokens),
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	var out Response
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			out.Text += variant.Text
		case sdk.ToolUseBlock:
			args, _ := json.Marshal(variant.Input)
			out.ToolCalls = append(out.ToolCalls, RequestedToolCall{
				CallID:    variant.ID,
				Name:      variant.Name,
				Arguments: string(args),
			})
		}
	}
	return out, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return fmt.Errorf("model: anthropic request failed: %w", err)
}

// IsAnthropicModel reports whether modelID should route to the Anthropic
// client rather than the default OpenAI-compatible one.
func IsAnthropicModel(modelID string) bool {
	return strings.HasPrefix(modelID, "claude-")
}
