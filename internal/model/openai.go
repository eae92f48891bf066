package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client against the OpenAI Chat Completions API.
// It is the default provider: Router sends it every request whose model
// identifier matches neither IsBedrockModel nor the Anthropic "claude-"
// prefix.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// OpenAIOptions configures the adapter. DefaultModel is required, as is one
// of APIKey or BearerToken (BearerToken wins when both are set); BaseURL and
// BearerToken mirror the CLI's OPENAI_BASE_URL / OPENAI_BEARER_TOKEN
// overrides for routing through a proxy or gateway that authenticates
// differently than a plain API key.
type OpenAIOptions struct {
	APIKey       string
	BaseURL      string
	BearerToken  string
	DefaultModel string
}

// NewOpenAIClient builds an OpenAIClient from the resolved configuration.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("model: default model is required")
	}

	reqOpts := []option.RequestOption{}
	switch {
	case opts.BearerToken != "":
		reqOpts = append(reqOpts, option.WithHeader("Authorization", "Bearer "+opts.BearerToken))
	case opts.APIKey != "":
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	default:
		return nil, errors.New("model: OPENAI_API_KEY or OPENAI_BEARER_TOKEN is required")
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(reqOpts...),
		model:  opts.DefaultModel,
	}, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		case "tool":
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
	for _, t := range req.Tools {
		var schema map[string]any
		if t.InputSchema != "" {
			if err := json.Unmarshal([]byte(t.InputSchema), &schema); err != nil {
				return Response{}, fmt.Errorf("model: unmarshal tool schema for %s: %w", t.Name, err)
			}
		}
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  schema,
			},
		})
	}

	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	if len(tools) > 0 {
		params.Tools = tools
		if req.ParallelToolCalls {
			params.ParallelToolCalls = openai.Bool(true)
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("model: openai returned no choices")
	}

	choice := resp.Choices[0]
	out := Response{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, RequestedToolCall{
			CallID:    tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return fmt.Errorf("model: openai request failed: %w", err)
}
