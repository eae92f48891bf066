// Package activities implements the two side-effectful entry points the
// agent workflow dispatches through the engine: model_call and tool_exec.
// Both run outside the replay sandbox and are identified by a stable name
// so the engine can record and replay their results.
package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/agentharness/codex-temporal/internal/agent"
	"github.com/agentharness/codex-temporal/internal/model"
	"github.com/agentharness/codex-temporal/internal/storage"
	"github.com/agentharness/codex-temporal/internal/telemetry"
	"github.com/agentharness/codex-temporal/internal/tools"
)

// NameModelCall and NameToolExec re-export the agent package's activity
// names so callers that register or invoke these activities (the worker's
// main, tests) don't need to import both packages just to name them.
const (
	NameModelCall = agent.ActivityModelCall
	NameToolExec  = agent.ActivityToolExec
)

// Activities bundles the provider/dispatcher dependencies the two
// activities need; a worker builds one Activities value and registers its
// methods as the engine's model_call/tool_exec activity handlers. Store is
// optional: when set, every activity result is additionally mirrored into
// the durable rollout-item backend as an audit trail, independent of the
// in-workflow event buffer the UI streams from.
type Activities struct {
	Model      model.Client
	Dispatcher tools.Dispatcher
	Store      storage.Store
	Metrics    telemetry.Metrics
	Tracer     telemetry.Tracer
}

func (a *Activities) audit(ctx context.Context, runID, kind string, v any) {
	if a.Store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = a.Store.Save(ctx, []storage.Item{{RunID: runID, Kind: kind, Data: string(data)}})
}

// traced wraps an activity call with a span and a duration histogram, falling
// back to no-ops when Metrics/Tracer were left unset (e.g. in tests).
func (a *Activities) traced(ctx context.Context, spanName string, fn func(ctx context.Context) error) error {
	tracer := a.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	metrics := a.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}

	ctx, span := tracer.Start(ctx, spanName)
	start := time.Now()
	err := fn(ctx)
	metrics.RecordTimer(spanName+"_duration", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}

// ModelCall builds a model.Request from the workflow's conversation history
// and tool catalog, calls the configured provider, and converts the
// response back into conversation items.
func (a *Activities) ModelCall(ctx context.Context, input any) (any, error) {
	in, ok := input.(agent.ModelCallInput)
	if !ok {
		return nil, fmt.Errorf("activities: model_call expected agent.ModelCallInput, got %T", input)
	}

	req := model.Request{
		Model:             in.Model,
		Instructions:      in.Instructions,
		ParallelToolCalls: in.ParallelToolCalls,
	}
	for _, item := range in.Input {
		switch item.Kind {
		case agent.ItemUserMessage:
			req.Messages = append(req.Messages, model.Message{Role: "user", Content: item.Text})
		case agent.ItemAssistantMessage:
			req.Messages = append(req.Messages, model.Message{Role: "assistant", Content: item.Text})
		case agent.ItemToolOutput:
			if item.ToolOut != nil {
				req.Messages = append(req.Messages, model.Message{
					Role:       "tool",
					Content:    item.ToolOut.Body.Output,
					ToolCallID: item.ToolOut.CallID,
				})
			}
		}
	}
	for _, t := range in.Tools {
		req.Tools = append(req.Tools, model.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.ParamSchema,
		})
	}

	var resp model.Response
	err := a.traced(ctx, "model_call", func(ctx context.Context) error {
		var callErr error
		resp, callErr = a.Model.Complete(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	out := agent.ModelCallOutput{}
	if resp.Text != "" {
		out.Items = append(out.Items, agent.ConversationItem{
			Kind: agent.ItemAssistantMessage,
			Text: resp.Text,
		})
	}
	for _, tc := range resp.ToolCalls {
		out.Items = append(out.Items, agent.ConversationItem{
			Kind: agent.ItemToolCall,
			ToolCall: &agent.ToolCall{
				CallID:    tc.CallID,
				ToolName:  tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	a.audit(ctx, in.ConversationID, "model_call", out)
	return out, nil
}

// ToolExec dispatches a single tool invocation through the configured
// Dispatcher and must respect cancellation: a cancelled context abandons
// the output entirely rather than returning a partial result.
func (a *Activities) ToolExec(ctx context.Context, input any) (any, error) {
	in, ok := input.(agent.ToolExecInput)
	if !ok {
		return nil, fmt.Errorf("activities: tool_exec expected agent.ToolExecInput, got %T", input)
	}

	var result tools.Result
	err := a.traced(ctx, "tool_exec:"+in.ToolName, func(ctx context.Context) error {
		var dispatchErr error
		result, dispatchErr = a.Dispatcher.Dispatch(ctx, tools.Invocation{
			ToolName:  in.ToolName,
			CallID:    in.CallID,
			Arguments: in.Arguments,
			Cwd:       in.Cwd,
		})
		return dispatchErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("activities: tool_exec %s: %w", in.ToolName, err)
	}

	out := agent.ToolExecOutput{
		CallID:   in.CallID,
		Output:   result.Output,
		ExitCode: result.ExitCode,
	}
	a.audit(ctx, in.CallID, "tool_exec", out)
	return out, nil
}
