// Package engine defines the abstraction layer between the agent workflow
// and the underlying durable-execution runtime. The workflow and tool
// handler are written entirely against these interfaces so that a real
// Temporal-backed adapter (engine/temporal) and an in-memory adapter used
// for tests and local scenario runs (engine/inmem) can be swapped without
// touching core logic.
package engine

import (
	"context"
	"time"
)

// Engine registers workflow and activity definitions with a task queue and
// starts new workflow executions.
type Engine interface {
	RegisterWorkflow(def WorkflowDefinition)
	RegisterActivity(def ActivityDefinition)
	StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
}

// WorkflowDefinition names a workflow function and the task queue it is
// served from.
type WorkflowDefinition struct {
	Name      string
	TaskQueue string
	Handler   WorkflowFunc
}

// WorkflowFunc is the shape of a workflow body. The input has already been
// decoded into the concrete request type the caller expects; it is typed as
// any at this layer because both the Temporal and in-memory adapters cross
// a serialization boundary here.
type WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

// ActivityDefinition names an activity function, independent of any single
// workflow, so a worker process can register every activity it serves once.
type ActivityDefinition struct {
	Name    string
	Handler ActivityFunc
	Options ActivityOptions
}

// ActivityFunc is the shape of an activity body, run outside the replay
// sandbox.
type ActivityFunc func(ctx context.Context, input any) (any, error)

// ActivityOptions are the default timeout/queue/retry settings an activity
// is registered with; a WorkflowContext.ExecuteActivity call may override
// them per invocation via ActivityRequest.
type ActivityOptions struct {
	Queue       string
	RetryPolicy RetryPolicy
	Timeout     time.Duration
	Heartbeat   time.Duration
}

// RetryPolicy mirrors the subset of retry configuration the workflow cares
// about; the adapter translates it into the underlying engine's native
// retry policy type.
type RetryPolicy struct {
	MaxAttempts        int32
	InitialInterval    time.Duration
	BackoffCoefficient float64
}

// WorkflowStartRequest starts a new workflow execution.
type WorkflowStartRequest struct {
	ID          string
	Workflow    string
	TaskQueue   string
	Input       any
	RetryPolicy RetryPolicy
}

// ActivityRequest invokes a single activity from within a workflow.
type ActivityRequest struct {
	Name        string
	Input       any
	Queue       string
	RetryPolicy RetryPolicy
	Timeout     time.Duration
	Heartbeat   time.Duration
}

// WorkflowContext is the handle a workflow body uses to interact with the
// engine: dispatching activities, waiting on signals, answering queries,
// and reading the engine-provided logical clock and random seed.
type WorkflowContext interface {
	Context() context.Context
	WorkflowID() string
	RunID() string

	// RandomSeed and Now give the workflow body its deterministic entropy
	// inputs; the workflow threads these into the determinism package's
	// scope rather than reading any ambient source.
	RandomSeed() uint64
	Now() time.Time

	ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error
	ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)

	SignalChannel(name string) SignalChannel
	SetQueryHandler(name string, handler func(args ...any) (any, error)) error

	// Await blocks until condition returns true or ctx is done, re-evaluating
	// condition every time a signal or activity completion is processed.
	// It is the workflow body's only busy-wait-free suspension primitive.
	Await(ctx context.Context, condition func() bool) error

	// Go starts a concurrent coroutine within the workflow's cooperative
	// scheduler. The canonical use is a small loop that blocks on
	// SignalChannel.Receive and mutates workflow-local state that a
	// separate Await condition observes — the standard way to wait on
	// "signal A OR signal B" without the engine exposing a raw select.
	Go(fn func(ctx context.Context))

	Logger() Logger
}

// Logger is the minimal structured-logging surface the workflow body needs;
// the real implementation lives in the telemetry package and is injected by
// the adapter constructing the WorkflowContext.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// Future represents an in-flight, asynchronously dispatched activity.
type Future interface {
	Get(ctx context.Context, result any) error
	IsReady() bool
}

// SignalChannel receives values sent to a named workflow signal.
type SignalChannel interface {
	// Receive blocks until a value is available or ctx is done, decoding it
	// into dest (which must be a pointer).
	Receive(ctx context.Context, dest any) error
	// ReceiveAsync returns false immediately if no value is queued.
	ReceiveAsync(dest any) bool
}

// WorkflowHandle is returned by StartWorkflow and lets a caller outside the
// workflow (the session adapter, or a test) wait for its result, signal it,
// or request cancellation.
type WorkflowHandle interface {
	WorkflowID() string
	RunID() string
	Wait(ctx context.Context, result any) error
	Signal(ctx context.Context, name string, payload any) error
	Query(ctx context.Context, name string, args ...any) (any, error)
	Cancel(ctx context.Context) error
}
