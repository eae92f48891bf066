package temporal

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/agentharness/codex-temporal/internal/engine"
)

// workflowContext adapts workflow.Context to engine.WorkflowContext. It is
// constructed fresh for every workflow activation by Engine.RegisterWorkflow
// and must not be retained past the handler call that received it.
type workflowContext struct {
	wfCtx context.Context // not set by newWorkflowContext; Context() wraps raw instead
	raw   workflow.Context
	eng   *Engine
}

func newWorkflowContext(e *Engine, ctx workflow.Context) *workflowContext {
	return &workflowContext{raw: ctx, eng: e}
}

func (w *workflowContext) Context() context.Context {
	return &goContextAdapter{wf: w.raw}
}

func (w *workflowContext) WorkflowID() string {
	return workflow.GetInfo(w.raw).WorkflowExecution.ID
}

func (w *workflowContext) RunID() string {
	return workflow.GetInfo(w.raw).WorkflowExecution.RunID
}

func (w *workflowContext) RandomSeed() uint64 {
	// The seed is the workflow's logical start time in nanoseconds, recorded
	// once through workflow.SideEffect so replays read back the same value.
	var seed uint64
	_ = workflow.SideEffect(w.raw, func(workflow.Context) any {
		return workflow.Now(w.raw).UnixNano()
	}).Get(&seed)
	return seed
}

func (w *workflowContext) Now() time.Time {
	return workflow.Now(w.raw)
}

func (w *workflowContext) Logger() engine.Logger {
	return &sdkLogger{raw: w.raw}
}

func (w *workflowContext) activityOptions(req engine.ActivityRequest) workflow.Context {
	def := w.eng.defaults[req.Name]
	if req.Queue == "" {
		req.Queue = def.Queue
	}
	if req.Timeout == 0 {
		req.Timeout = def.Timeout
	}
	if req.Heartbeat == 0 {
		req.Heartbeat = def.Heartbeat
	}
	if req.RetryPolicy.MaxAttempts == 0 {
		req.RetryPolicy = def.RetryPolicy
	}
	opts := workflow.ActivityOptions{
		TaskQueue:              req.Queue,
		StartToCloseTimeout:    req.Timeout,
		ScheduleToStartTimeout: req.Timeout,
		HeartbeatTimeout:       req.Heartbeat,
	}
	if req.RetryPolicy.MaxAttempts > 0 {
		opts.RetryPolicy = &temporal.RetryPolicy{
			MaximumAttempts:    req.RetryPolicy.MaxAttempts,
			InitialInterval:    req.RetryPolicy.InitialInterval,
			BackoffCoefficient: req.RetryPolicy.BackoffCoefficient,
		}
	}
	return workflow.WithActivityOptions(w.raw, opts)
}

func (w *workflowContext) ExecuteActivity(ctx context.Context, req engine.ActivityRequest, result any) error {
	activityCtx := w.activityOptions(req)
	future := workflow.ExecuteActivity(activityCtx, req.Name, req.Input)
	return normalizeError(future.Get(activityCtx, result))
}

func (w *workflowContext) ExecuteActivityAsync(ctx context.Context, req engine.ActivityRequest) (engine.Future, error) {
	activityCtx := w.activityOptions(req)
	future := workflow.ExecuteActivity(activityCtx, req.Name, req.Input)
	return &temporalFuture{raw: future, ctx: activityCtx}, nil
}

func (w *workflowContext) SignalChannel(name string) engine.SignalChannel {
	return &temporalSignalChannel{raw: w.raw.GetSignalChannel(w.raw, name), wfCtx: w.raw}
}

func (w *workflowContext) SetQueryHandler(name string, handler func(args ...any) (any, error)) error {
	return workflow.SetQueryHandler(w.raw, name, handler)
}

func (w *workflowContext) Await(ctx context.Context, condition func() bool) error {
	return normalizeError(workflow.Await(w.raw, condition))
}

func (w *workflowContext) Go(fn func(ctx context.Context)) {
	workflow.Go(w.raw, func(goCtx workflow.Context) {
		fn(&goContextAdapter{wf: goCtx})
	})
}

// normalizeError maps Temporal's cancellation error into the stdlib
// context.Canceled so the run loop's error classification stays structural
// rather than engine-specific.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if temporal.IsCanceledError(err) {
		return context.Canceled
	}
	return err
}

// temporalFuture adapts workflow.Future to engine.Future.
type temporalFuture struct {
	raw workflow.Future
	ctx workflow.Context
}

func (f *temporalFuture) Get(ctx context.Context, result any) error {
	return normalizeError(f.raw.Get(f.ctx, result))
}

func (f *temporalFuture) IsReady() bool {
	return f.raw.IsReady()
}

// temporalSignalChannel adapts workflow.ReceiveChannel to engine.SignalChannel.
type temporalSignalChannel struct {
	raw   workflow.ReceiveChannel
	wfCtx workflow.Context
}

func (s *temporalSignalChannel) Receive(ctx context.Context, dest any) error {
	s.raw.Receive(s.wfCtx, dest)
	return nil
}

func (s *temporalSignalChannel) ReceiveAsync(dest any) bool {
	return s.raw.ReceiveAsync(dest)
}

// sdkLogger adapts workflow.GetLogger to engine.Logger.
type sdkLogger struct {
	raw workflow.Context
}

func (l *sdkLogger) Debug(msg string, kv ...any) { workflow.GetLogger(l.raw).Debug(msg, kv...) }
func (l *sdkLogger) Info(msg string, kv ...any)  { workflow.GetLogger(l.raw).Info(msg, kv...) }
func (l *sdkLogger) Warn(msg string, kv ...any)  { workflow.GetLogger(l.raw).Warn(msg, kv...) }
func (l *sdkLogger) Error(msg string, kv ...any) { workflow.GetLogger(l.raw).Error(msg, kv...) }

// goContextAdapter lets workflow code call the stdlib context.Context
// surface (Done/Err/Value/Deadline) while the underlying cancellation
// actually flows through workflow.Context, which Temporal's replay
// sandbox requires instead of a real context.Context.
type goContextAdapter struct {
	wf workflow.Context
}

func (g *goContextAdapter) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

func (g *goContextAdapter) Done() <-chan struct{} {
	ch := make(chan struct{})
	if g.wf.Err() != nil {
		close(ch)
	}
	return ch
}

func (g *goContextAdapter) Err() error {
	return normalizeError(g.wf.Err())
}

func (g *goContextAdapter) Value(key any) any {
	return g.wf.Value(key)
}
