// Package inmem provides a goroutine-based Engine implementation used by
// tests and local scenario runs. It supports the same WorkflowContext
// surface as the Temporal adapter closely enough that a workflow body
// written against engine.WorkflowContext runs unmodified against either.
// It is not deterministic-replay-safe; it exists purely so the agent
// workflow and its scenarios can be exercised without a live Temporal
// server.
package inmem

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/agentharness/codex-temporal/internal/engine"
)

// Engine is an in-process engine.Engine.
type Engine struct {
	mu         sync.Mutex
	workflows  map[string]engine.WorkflowDefinition
	activities map[string]engine.ActivityDefinition
	seedSeq    uint64
}

// New returns an empty in-memory Engine.
func New() *Engine {
	return &Engine{
		workflows:  make(map[string]engine.WorkflowDefinition),
		activities: make(map[string]engine.ActivityDefinition),
	}
}

func (e *Engine) RegisterWorkflow(def engine.WorkflowDefinition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[def.Name] = def
}

func (e *Engine) RegisterActivity(def engine.ActivityDefinition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activities[def.Name] = def
}

func (e *Engine) activity(name string) (engine.ActivityDefinition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	def, ok := e.activities[name]
	return def, ok
}

func (e *Engine) nextSeed() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seedSeq++
	return e.seedSeq*2654435761 + 1
}

func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	e.mu.Lock()
	def, ok := e.workflows[req.Workflow]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("inmem: unknown workflow %q", req.Workflow)
	}

	wfCtx, cancel := context.WithCancel(context.Background())
	wc := &workflowContext{
		ctx:        wfCtx,
		cancelFn:   cancel,
		engine:     e,
		workflowID: req.ID,
		runID:      req.ID + "-run",
		seed:       e.nextSeed(),
		started:    time.Now(),
		signals:    make(map[string]*signalChannel),
		queries:    make(map[string]func(args ...any) (any, error)),
	}

	h := &handle{
		workflowID: req.ID,
		runID:      wc.runID,
		done:       make(chan struct{}),
		wc:         wc,
	}

	go func() {
		result, err := def.Handler(wc, req.Input)
		h.mu.Lock()
		h.result, h.err = result, err
		h.mu.Unlock()
		close(h.done)
	}()

	return h, nil
}

// handle implements engine.WorkflowHandle against a workflow running in a
// dedicated goroutine.
type handle struct {
	workflowID string
	runID      string
	done       chan struct{}
	wc         *workflowContext

	mu     sync.Mutex
	result any
	err    error
}

func (h *handle) WorkflowID() string { return h.workflowID }
func (h *handle) RunID() string      { return h.runID }

func (h *handle) Wait(ctx context.Context, result any) error {
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	return assign(result, h.result)
}

func (h *handle) Signal(ctx context.Context, name string, payload any) error {
	ch := h.wc.signalChannel(name)
	return ch.send(ctx, payload)
}

func (h *handle) Query(ctx context.Context, name string, args ...any) (any, error) {
	h.wc.mu.Lock()
	fn, ok := h.wc.queries[name]
	h.wc.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("inmem: unknown query %q", name)
	}
	return fn(args...)
}

func (h *handle) Cancel(ctx context.Context) error {
	h.wc.cancel()
	return nil
}

// workflowContext implements engine.WorkflowContext for the in-memory
// engine. Its wait/condition loop polls rather than being woken precisely
// by signal delivery, which is acceptable for tests and local scenarios but
// is the reason this adapter is not used for production replay.
type workflowContext struct {
	ctx        context.Context
	cancelFn   context.CancelFunc
	engine     *Engine
	workflowID string
	runID      string
	seed       uint64
	started    time.Time

	mu      sync.Mutex
	signals map[string]*signalChannel
	queries map[string]func(args ...any) (any, error)
}

func (w *workflowContext) cancel() {
	if w.cancelFn != nil {
		w.cancelFn()
	}
}

func (w *workflowContext) Context() context.Context { return w.ctx }
func (w *workflowContext) WorkflowID() string        { return w.workflowID }
func (w *workflowContext) RunID() string             { return w.runID }
func (w *workflowContext) RandomSeed() uint64         { return w.seed }
func (w *workflowContext) Now() time.Time            { return w.started }

func (w *workflowContext) Logger() engine.Logger { return noopLogger{} }

func (w *workflowContext) ExecuteActivity(ctx context.Context, req engine.ActivityRequest, result any) error {
	def, ok := w.engine.activity(req.Name)
	if !ok {
		return fmt.Errorf("inmem: unknown activity %q", req.Name)
	}
	out, err := def.Handler(ctx, req.Input)
	if err != nil {
		return err
	}
	return assign(result, out)
}

func (w *workflowContext) ExecuteActivityAsync(ctx context.Context, req engine.ActivityRequest) (engine.Future, error) {
	f := &future{done: make(chan struct{})}
	go func() {
		def, ok := w.engine.activity(req.Name)
		if !ok {
			f.err = fmt.Errorf("inmem: unknown activity %q", req.Name)
			close(f.done)
			return
		}
		out, err := def.Handler(ctx, req.Input)
		f.result, f.err = out, err
		close(f.done)
	}()
	return f, nil
}

func (w *workflowContext) SignalChannel(name string) engine.SignalChannel {
	return w.signalChannel(name)
}

func (w *workflowContext) signalChannel(name string) *signalChannel {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.signals[name]
	if !ok {
		ch = &signalChannel{ch: make(chan any, 16)}
		w.signals[name] = ch
	}
	return ch
}

func (w *workflowContext) SetQueryHandler(name string, handler func(args ...any) (any, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries[name] = handler
	return nil
}

func (w *workflowContext) Go(fn func(ctx context.Context)) {
	go fn(w.ctx)
}

func (w *workflowContext) Await(ctx context.Context, condition func() bool) error {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	if condition() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// future implements engine.Future.
type future struct {
	done   chan struct{}
	result any
	err    error
}

func (f *future) Get(ctx context.Context, result any) error {
	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	return assign(result, f.result)
}

func (f *future) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// signalChannel implements engine.SignalChannel over a buffered Go channel.
type signalChannel struct {
	ch chan any
}

func (s *signalChannel) send(ctx context.Context, payload any) error {
	select {
	case s.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *signalChannel) Receive(ctx context.Context, dest any) error {
	select {
	case v := <-s.ch:
		return assign(dest, v)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *signalChannel) ReceiveAsync(dest any) bool {
	select {
	case v := <-s.ch:
		_ = assign(dest, v)
		return true
	default:
		return false
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// assign copies src into dest, which must be a non-nil pointer. It supports
// both the case where src already satisfies dest's pointed-to type and the
// case where dest is an interface pointer that src's concrete type
// implements, matching the flexibility the Temporal data converter gives
// activities whose declared result type is an interface.
func assign(dest, src any) error {
	if dest == nil {
		return nil
	}
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("inmem: assign destination must be a non-nil pointer, got %T", dest)
	}
	if src == nil {
		return nil
	}
	sv := reflect.ValueOf(src)
	elem := dv.Elem()
	if sv.Type().AssignableTo(elem.Type()) {
		elem.Set(sv)
		return nil
	}
	return fmt.Errorf("inmem: cannot assign %T into %s", src, elem.Type())
}
