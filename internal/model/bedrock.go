package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// BedrockOptions configures the AWS Bedrock Converse adapter.
type BedrockOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	MaxTokens       int
}

// BedrockClient implements Client against the AWS Bedrock Converse API. It
// only needs single-shot completion, so Converse is the only runtime call
// it makes — no streaming, thinking budgets, or prompt-cache checkpoints.
type BedrockClient struct {
	runtime      *bedrockruntime.Client
	defaultModel string
	maxTokens    int
}

// NewBedrockClient builds a Bedrock runtime client from static credentials
// and wraps it as a model.Client. aws-sdk-go-v2/config is not part of the
// dependency set this harness carries, so credentials are supplied directly
// via a CredentialsProviderFunc rather than the shared config loader.
func NewBedrockClient(opts BedrockOptions) (*BedrockClient, error) {
	if opts.Region == "" {
		return nil, errors.New("model: bedrock region is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("model: bedrock default model is required")
	}

	cfg := aws.Config{
		Region: opts.Region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     opts.AccessKeyID,
				SecretAccessKey: opts.SecretAccessKey,
				SessionToken:    opts.SessionToken,
			}, nil
		}),
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &BedrockClient{
		runtime:      bedrockruntime.NewFromConfig(cfg),
		defaultModel: opts.DefaultModel,
		maxTokens:    maxTokens,
	}, nil
}

// IsBedrockModel reports whether modelID names an Amazon Bedrock model
// (Nova or Titan families, or a cross-region inference profile ARN), so the
// Router can pick this adapter ahead of the OpenAI default without the
// Anthropic "claude-" prefix check shadowing Bedrock-hosted Claude models.
func IsBedrockModel(modelID string) bool {
	for _, prefix := range []string{"amazon.nova-", "amazon.titan-", "arn:aws:bedrock:"} {
		if len(modelID) >= len(prefix) && modelID[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func (c *BedrockClient) Complete(ctx context.Context, req Request) (Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages, system := encodeBedrockMessages(req.Messages, req.Instructions)
	if len(messages) == 0 {
		return Response{}, errors.New("model: bedrock request has no messages")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(c.maxTokens)), //nolint:gosec // bounded by config, not user input
		},
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolConfig := encodeBedrockTools(req.Tools); toolConfig != nil {
		input.ToolConfig = toolConfig
	}

	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return Response{}, classifyBedrockError(err)
	}
	return translateBedrockResponse(output)
}

func encodeBedrockMessages(msgs []Message, instructions string) ([]brtypes.Message, []brtypes.SystemContentBlock) {
	var system []brtypes.SystemContentBlock
	if instructions != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: instructions})
	}

	var out []brtypes.Message
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
		case "tool":
			out = append(out, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolResult{
						Value: brtypes.ToolResultBlock{
							ToolUseId: aws.String(m.ToolCallID),
							Content: []brtypes.ToolResultContentBlock{
								&brtypes.ToolResultContentBlockMemberText{Value: m.Content},
							},
						},
					},
				},
			})
		case "assistant":
			out = append(out, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		default:
			out = append(out, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		}
	}
	return out, system
}

func encodeBedrockTools(tools []ToolDefinition) *brtypes.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	var specs []brtypes.Tool
	for _, t := range tools {
		specs = append(specs, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{
					Value: toBedrockDocument(t.InputSchema),
				},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: specs}
}

func toBedrockDocument(rawJSON string) document.Interface {
	if rawJSON == "" {
		rawJSON = "{}"
	}
	return document.NewLazyDocument(json.RawMessage(rawJSON))
}

func translateBedrockResponse(output *bedrockruntime.ConverseOutput) (Response, error) {
	if output == nil {
		return Response{}, errors.New("model: bedrock response is nil")
	}
	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return Response{}, errors.New("model: bedrock response missing message output")
	}

	var resp Response
	for _, block := range msg.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Text += v.Value
		case *brtypes.ContentBlockMemberToolUse:
			args, _ := decodeBedrockDocument(v.Value.Input)
			var id, name string
			if v.Value.ToolUseId != nil {
				id = *v.Value.ToolUseId
			}
			if v.Value.Name != nil {
				name = *v.Value.Name
			}
			resp.ToolCalls = append(resp.ToolCalls, RequestedToolCall{
				CallID:    id,
				Name:      name,
				Arguments: args,
			})
		}
	}
	return resp, nil
}

func decodeBedrockDocument(doc document.Interface) (string, error) {
	if doc == nil {
		return "{}", nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil {
		return "{}", err
	}
	if len(data) == 0 {
		return "{}", nil
	}
	return string(data), nil
}

// classifyBedrockError maps a Converse error into a StatusError so the
// shared IsRetryable classification applies uniformly across all three
// model providers.
func classifyBedrockError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return &StatusError{StatusCode: 429, Message: err.Error()}
		case "ValidationException", "AccessDeniedException":
			return &StatusError{StatusCode: 400, Message: err.Error()}
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return &StatusError{StatusCode: respErr.HTTPStatusCode(), Message: err.Error()}
	}
	return fmt.Errorf("model: bedrock converse: %w", err)
}
