// Package temporal adapts the engine.Engine/WorkflowContext abstraction to
// the real go.temporal.io/sdk client and worker, so the agent workflow and
// tool handler run unmodified against a production Temporal cluster.
package temporal

import (
	"context"
	"fmt"

	sdkotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/agentharness/codex-temporal/internal/engine"
)

// Engine wraps a Temporal client and the worker(s) registered against it.
type Engine struct {
	client    client.Client
	taskQueue string
	worker    worker.Worker
	defaults  map[string]engine.ActivityOptions
}

// New builds a Temporal-backed Engine bound to taskQueue, with an OTEL
// tracing interceptor so workflow and activity spans land in the same trace
// as the client that submitted them. The caller owns the lifetime of the
// underlying client.Client and must Close it.
func New(c client.Client, taskQueue string) *Engine {
	opts := worker.Options{}
	if tracer, err := sdkotel.NewTracingInterceptor(sdkotel.TracerOptions{}); err == nil {
		opts.Interceptors = []interceptor.WorkerInterceptor{tracer}
	}
	w := worker.New(c, taskQueue, opts)
	return &Engine{
		client:    c,
		taskQueue: taskQueue,
		worker:    w,
		defaults:  make(map[string]engine.ActivityOptions),
	}
}

// Run starts the underlying Temporal worker and blocks until the process
// receives an interrupt signal (worker.InterruptCh); ctx is not consulted.
func (e *Engine) Run(ctx context.Context) error {
	return e.worker.Run(worker.InterruptCh())
}

func (e *Engine) RegisterWorkflow(def engine.WorkflowDefinition) {
	e.worker.RegisterWorkflowWithOptions(
		func(ctx workflow.Context, input any) (any, error) {
			wc := newWorkflowContext(e, ctx)
			return def.Handler(wc, input)
		},
		workflow.RegisterOptions{Name: def.Name},
	)
}

func (e *Engine) RegisterActivity(def engine.ActivityDefinition) {
	e.defaults[def.Name] = def.Options
	e.worker.RegisterActivityWithOptions(
		func(ctx context.Context, input any) (any, error) {
			return def.Handler(ctx, input)
		},
		activity.RegisterOptions{Name: def.Name},
	)
}

func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	taskQueue := req.TaskQueue
	if taskQueue == "" {
		taskQueue = e.taskQueue
	}
	opts := client.StartWorkflowOptions{
		ID:        req.ID,
		TaskQueue: taskQueue,
	}
	if req.RetryPolicy.MaxAttempts > 0 {
		opts.RetryPolicy = &temporal.RetryPolicy{
			MaximumAttempts:    req.RetryPolicy.MaxAttempts,
			InitialInterval:    req.RetryPolicy.InitialInterval,
			BackoffCoefficient: req.RetryPolicy.BackoffCoefficient,
		}
	}
	run, err := e.client.ExecuteWorkflow(ctx, opts, req.Workflow, req.Input)
	if err != nil {
		return nil, fmt.Errorf("temporal: start workflow %q: %w", req.Workflow, err)
	}
	return &handle{client: e.client, run: run}, nil
}

// handle implements engine.WorkflowHandle over a client.WorkflowRun.
type handle struct {
	client client.Client
	run    client.WorkflowRun
}

func (h *handle) WorkflowID() string { return h.run.GetID() }
func (h *handle) RunID() string      { return h.run.GetRunID() }

func (h *handle) Wait(ctx context.Context, result any) error {
	return h.run.Get(ctx, result)
}

func (h *handle) Signal(ctx context.Context, name string, payload any) error {
	return h.client.SignalWorkflow(ctx, h.WorkflowID(), h.RunID(), name, payload)
}

func (h *handle) Query(ctx context.Context, name string, args ...any) (any, error) {
	resp, err := h.client.QueryWorkflow(ctx, h.WorkflowID(), h.RunID(), name, args...)
	if err != nil {
		return nil, err
	}
	var out any
	if err := resp.Get(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *handle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.WorkflowID(), h.RunID())
}
