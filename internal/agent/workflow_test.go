package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentharness/codex-temporal/internal/activities"
	"github.com/agentharness/codex-temporal/internal/engine"
	"github.com/agentharness/codex-temporal/internal/engine/inmem"
	"github.com/agentharness/codex-temporal/internal/events"
	"github.com/agentharness/codex-temporal/internal/model"
	"github.com/agentharness/codex-temporal/internal/tools"
)

// scriptedModel returns a prepared sequence of responses, one per call,
// repeating the last one if more calls arrive than scripted. It lets each
// scenario drive the model deterministically without a real API.
type scriptedModel struct {
	mu        sync.Mutex
	responses []model.Response
	calls     int
	requests  []model.Request
}

func (m *scriptedModel) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	return m.responses[idx], nil
}

func (m *scriptedModel) requestAt(i int) model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func (m *scriptedModel) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type fakeDispatcher struct {
	result tools.Result
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	return f.result, nil
}

func newTestEngine(t *testing.T, modelClient model.Client, dispatcher tools.Dispatcher) *inmem.Engine {
	t.Helper()
	eng := inmem.New()
	eng.RegisterWorkflow(engine.WorkflowDefinition{Name: WorkflowName, TaskQueue: TaskQueue, Handler: Run})

	a := &activities.Activities{Model: modelClient, Dispatcher: dispatcher}
	eng.RegisterActivity(engine.ActivityDefinition{Name: activities.NameModelCall, Handler: a.ModelCall})
	eng.RegisterActivity(engine.ActivityDefinition{Name: activities.NameToolExec, Handler: a.ToolExec})
	return eng
}

func queryEventsSince(t *testing.T, h engine.WorkflowHandle, from int) EventsSinceResult {
	t.Helper()
	raw, err := h.Query(context.Background(), QueryEventsSince, from)
	require.NoError(t, err)
	res, ok := raw.(EventsSinceResult)
	require.True(t, ok, "expected EventsSinceResult, got %T", raw)
	return res
}

// TestScenarioModelOnlyTurn covers scenario 1: a turn with no tool calls
// produces TurnStarted then TurnComplete with a non-empty last message and
// no ExecApprovalRequest.
func TestScenarioModelOnlyTurn(t *testing.T) {
	sm := &scriptedModel{responses: []model.Response{{Text: "Hello! How can I help you today?"}}}
	eng := newTestEngine(t, sm, &fakeDispatcher{})

	h, err := eng.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "wf-1",
		Workflow: WorkflowName,
		Input: WorkflowInput{
			UserMessage:    "Say hello in one sentence.",
			Model:          "gpt-4o",
			ApprovalPolicy: ApprovalOnRequest,
		},
	})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	var res EventsSinceResult
	for time.Now().Before(deadline) {
		res = queryEventsSince(t, h, 0)
		if len(res.Events) >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	require.GreaterOrEqual(t, len(res.Events), 2)
	assert.Equal(t, events.KindTurnStarted, res.Events[0].Msg.Type)

	var sawApproval bool
	var turnComplete *events.Event
	for i := range res.Events {
		if res.Events[i].Msg.Type == events.KindExecApprovalRequest {
			sawApproval = true
		}
		if res.Events[i].Msg.Type == events.KindTurnComplete {
			turnComplete = &res.Events[i]
		}
	}
	assert.False(t, sawApproval)
	require.NotNil(t, turnComplete)
	assert.NotEmpty(t, turnComplete.Msg.LastAgentMessage)

	_ = h.Signal(context.Background(), SignalRequestShutdown, struct{}{})
}

// TestScenarioApprovalThenExecute covers scenario 2: a tool call requires
// approval; once approved, the tool runs and the final message reflects
// its output.
func TestScenarioApprovalThenExecute(t *testing.T) {
	sm := &scriptedModel{responses: []model.Response{
		{ToolCalls: []model.RequestedToolCall{{CallID: "call-1", Name: "shell", Arguments: `{"command":["echo","hello world"]}`}}},
		{Text: "I ran the command and got: hello world"},
	}}
	eng := newTestEngine(t, sm, &fakeDispatcher{result: tools.Result{Output: "hello world", ExitCode: 0}})

	h, err := eng.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "wf-2",
		Workflow: WorkflowName,
		Input: WorkflowInput{
			UserMessage:    "Use shell to run 'echo hello world'.",
			Model:          "gpt-4o",
			ApprovalPolicy: ApprovalOnRequest,
		},
	})
	require.NoError(t, err)

	var approvalEvent *events.Event
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res := queryEventsSince(t, h, 0)
		for i := range res.Events {
			if res.Events[i].Msg.Type == events.KindExecApprovalRequest {
				approvalEvent = &res.Events[i]
			}
		}
		if approvalEvent != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, approvalEvent)
	assert.Equal(t, []string{"echo", "hello world"}, approvalEvent.Msg.Command)

	require.NoError(t, h.Signal(context.Background(), SignalApproval, ApprovalInput{
		CallID: approvalEvent.Msg.CallID, Approved: true,
	}))

	var out WorkflowOutput
	require.NoError(t, h.Signal(context.Background(), SignalRequestShutdown, struct{}{}))
	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(waitCtx, &out))
	assert.Contains(t, out.LastAgentMessage, "hello world")
}

// TestScenarioApprovalDenied covers scenario 3: a denied approval never
// reaches the dispatcher and the workflow still runs to completion.
func TestScenarioApprovalDenied(t *testing.T) {
	sm := &scriptedModel{responses: []model.Response{
		{ToolCalls: []model.RequestedToolCall{{CallID: "call-1", Name: "shell", Arguments: `{"command":["rm","-rf","/"]}`}}},
		{Text: "Understood, I will not run that command."},
	}}
	dispatched := false
	eng := newTestEngine(t, sm, dispatchRecorder(&dispatched))

	h, err := eng.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "wf-3",
		Workflow: WorkflowName,
		Input: WorkflowInput{
			UserMessage:    "Use shell to run 'rm -rf /'.",
			Model:          "gpt-4o",
			ApprovalPolicy: ApprovalOnRequest,
		},
	})
	require.NoError(t, err)

	var approvalEvent *events.Event
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res := queryEventsSince(t, h, 0)
		for i := range res.Events {
			if res.Events[i].Msg.Type == events.KindExecApprovalRequest {
				approvalEvent = &res.Events[i]
			}
		}
		if approvalEvent != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, approvalEvent)

	require.NoError(t, h.Signal(context.Background(), SignalApproval, ApprovalInput{
		CallID: approvalEvent.Msg.CallID, Approved: false,
	}))
	require.NoError(t, h.Signal(context.Background(), SignalRequestShutdown, struct{}{}))

	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out WorkflowOutput
	require.NoError(t, h.Wait(waitCtx, &out))

	assert.False(t, dispatched)
}

func dispatchRecorder(called *bool) tools.Dispatcher {
	return dispatcherFunc(func(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
		*called = true
		return tools.Result{Output: "should not run", ExitCode: 0}, nil
	})
}

type dispatcherFunc func(ctx context.Context, inv tools.Invocation) (tools.Result, error)

func (f dispatcherFunc) Dispatch(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	return f(ctx, inv)
}

// TestScenarioShutdownDuringIdle covers scenario 5: after a turn completes,
// a Shutdown submitted while idle produces exactly one ShutdownComplete.
func TestScenarioShutdownDuringIdle(t *testing.T) {
	sm := &scriptedModel{responses: []model.Response{{Text: "done"}}}
	eng := newTestEngine(t, sm, &fakeDispatcher{})

	h, err := eng.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "wf-5",
		Workflow: WorkflowName,
		Input: WorkflowInput{
			UserMessage:    "hello",
			Model:          "gpt-4o",
			ApprovalPolicy: ApprovalNever,
		},
	})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res := queryEventsSince(t, h, 0)
		if hasKind(res.Events, events.KindTurnComplete) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	require.NoError(t, h.Signal(context.Background(), SignalRequestShutdown, struct{}{}))

	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out WorkflowOutput
	require.NoError(t, h.Wait(waitCtx, &out))

	res := queryEventsSince(t, h, 0)
	count := 0
	for _, e := range res.Events {
		if e.Msg.Type == events.KindShutdownComplete {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func hasKind(evs []events.Event, kind events.Kind) bool {
	for _, e := range evs {
		if e.Msg.Type == kind {
			return true
		}
	}
	return false
}

// TestScenarioMaxIterations covers scenario 6: a model that always requests
// a tool call exhausts MaxIterations and the result reports exactly that
// many iterations for the turn.
func TestScenarioMaxIterations(t *testing.T) {
	alwaysToolCall := model.Response{
		ToolCalls: []model.RequestedToolCall{{CallID: "call-x", Name: "shell", Arguments: `{"command":["echo","again"]}`}},
	}
	sm := &scriptedModel{responses: []model.Response{alwaysToolCall}}
	eng := newTestEngine(t, sm, &fakeDispatcher{result: tools.Result{Output: "again", ExitCode: 0}})

	h, err := eng.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "wf-6",
		Workflow: WorkflowName,
		Input: WorkflowInput{
			UserMessage:    "loop forever",
			Model:          "gpt-4o",
			ApprovalPolicy: ApprovalNever,
		},
	})
	require.NoError(t, err)

	require.NoError(t, h.Signal(context.Background(), SignalRequestShutdown, struct{}{}))

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out WorkflowOutput
	require.NoError(t, h.Wait(waitCtx, &out))

	assert.Equal(t, MaxIterations, out.Iterations)
}

// TestScenarioMultiTurnMemory covers scenario 4: conversation_history
// persists across turns within a single workflow run, so a later turn's
// model_call input still carries an earlier turn's user message.
func TestScenarioMultiTurnMemory(t *testing.T) {
	sm := &scriptedModel{responses: []model.Response{
		{Text: "Got it, I'll remember orange."},
		{Text: "Your favorite color is orange."},
	}}
	eng := newTestEngine(t, sm, &fakeDispatcher{})

	h, err := eng.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "wf-4",
		Workflow: WorkflowName,
		Input: WorkflowInput{
			UserMessage:    "My favorite color is orange.",
			Model:          "gpt-4o",
			ApprovalPolicy: ApprovalNever,
		},
	})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res := queryEventsSince(t, h, 0)
		if hasKind(res.Events, events.KindTurnComplete) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	require.NoError(t, h.Signal(context.Background(), SignalUserTurn, UserTurnInput{
		TurnID: "turn-1", Message: "What is my favorite color?",
	}))

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sm.requestCount() >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.GreaterOrEqual(t, sm.requestCount(), 2)

	secondReq := sm.requestAt(1)
	var sawOrange bool
	for _, msg := range secondReq.Messages {
		if strings.Contains(msg.Content, "orange") {
			sawOrange = true
			break
		}
	}
	assert.True(t, sawOrange, "expected second turn's model_call input to still carry the first turn's message")

	require.NoError(t, h.Signal(context.Background(), SignalRequestShutdown, struct{}{}))
	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out WorkflowOutput
	require.NoError(t, h.Wait(waitCtx, &out))
	assert.Contains(t, out.LastAgentMessage, "orange")
}
