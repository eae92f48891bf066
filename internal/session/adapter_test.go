package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentharness/codex-temporal/internal/activities"
	"github.com/agentharness/codex-temporal/internal/agent"
	"github.com/agentharness/codex-temporal/internal/engine"
	"github.com/agentharness/codex-temporal/internal/engine/inmem"
	"github.com/agentharness/codex-temporal/internal/events"
	"github.com/agentharness/codex-temporal/internal/model"
	"github.com/agentharness/codex-temporal/internal/tools"
)

type constModel struct{ text string }

func (m constModel) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	return model.Response{Text: m.text}, nil
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	return tools.Result{}, nil
}

func newAdapterTestEngine(t *testing.T) engine.Engine {
	t.Helper()
	eng := inmem.New()
	eng.RegisterWorkflow(engine.WorkflowDefinition{Name: agent.WorkflowName, TaskQueue: agent.TaskQueue, Handler: agent.Run})
	a := &activities.Activities{Model: constModel{text: "ok"}, Dispatcher: noopDispatcher{}}
	eng.RegisterActivity(engine.ActivityDefinition{Name: activities.NameModelCall, Handler: a.ModelCall})
	eng.RegisterActivity(engine.ActivityDefinition{Name: activities.NameToolExec, Handler: a.ToolExec})
	return eng
}

func TestAdapterStartsWorkflowLazily(t *testing.T) {
	eng := newAdapterTestEngine(t)
	a := New(eng, "wf-session-1", agent.WorkflowInput{Model: "gpt-4o", ApprovalPolicy: agent.ApprovalNever}, nil)

	id, err := a.Submit(context.Background(), Op{Kind: OpUserTurn, UserTurnMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "turn-0", id)

	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	assert.True(t, started)
}

func TestAdapterNextEventDrainsEventually(t *testing.T) {
	eng := newAdapterTestEngine(t)
	a := New(eng, "wf-session-2", agent.WorkflowInput{Model: "gpt-4o", ApprovalPolicy: agent.ApprovalNever}, nil)

	_, err := a.Submit(context.Background(), Op{Kind: OpUserTurn, UserTurnMessage: "hi"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var sawTurnStarted bool
	for i := 0; i < 20; i++ {
		e, err := a.NextEvent(ctx)
		require.NoError(t, err)
		if e.Msg.Type == events.KindTurnStarted {
			sawTurnStarted = true
			break
		}
	}
	assert.True(t, sawTurnStarted)
}

func TestApprovalNormalization(t *testing.T) {
	assert.True(t, normalizeApproval(DecisionApproved))
	assert.True(t, normalizeApproval(DecisionApprovedForSession))
	assert.True(t, normalizeApproval(DecisionApprovedExecpolicyAmendment))
	assert.False(t, normalizeApproval(DecisionDenied))
	assert.False(t, normalizeApproval(DecisionDeferred))
}

func TestAdapterShutdownBeforeStartIsNoop(t *testing.T) {
	eng := newAdapterTestEngine(t)
	a := New(eng, "wf-session-3", agent.WorkflowInput{}, nil)

	id, err := a.Submit(context.Background(), Op{Kind: OpShutdown})
	require.NoError(t, err)
	assert.Equal(t, "noop", id)
}

func TestAdapterInterruptIsNoop(t *testing.T) {
	eng := newAdapterTestEngine(t)
	a := New(eng, "wf-session-4", agent.WorkflowInput{}, nil)

	id, err := a.Submit(context.Background(), Op{Kind: OpInterrupt})
	require.NoError(t, err)
	assert.Equal(t, "interrupt-noop", id)
}
