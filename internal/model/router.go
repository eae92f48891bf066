package model

import (
	"context"
	"errors"
)

// Router dispatches each request to Bedrock, Anthropic, or OpenAI by model ID
// prefix, so a single worker process can serve all three providers without
// the workflow or activity layer knowing which one backs a given model
// string. Bedrock is checked first since it hosts its own Nova/Titan model
// families under prefixes that never collide with the other two.
type Router struct {
	OpenAI    Client
	Anthropic Client
	Bedrock   Client
}

func (r Router) Complete(ctx context.Context, req Request) (Response, error) {
	if IsBedrockModel(req.Model) {
		if r.Bedrock == nil {
			return Response{}, errors.New("model: no bedrock client configured for model " + req.Model)
		}
		return r.Bedrock.Complete(ctx, req)
	}
	if IsAnthropicModel(req.Model) {
		if r.Anthropic == nil {
			return Response{}, errors.New("model: no anthropic client configured for model " + req.Model)
		}
		return r.Anthropic.Complete(ctx, req)
	}
	if r.OpenAI == nil {
		return Response{}, errors.New("model: no openai client configured for model " + req.Model)
	}
	return r.OpenAI.Complete(ctx, req)
}
