package activities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentharness/codex-temporal/internal/agent"
	"github.com/agentharness/codex-temporal/internal/model"
	"github.com/agentharness/codex-temporal/internal/tools"
)

type fakeModel struct {
	resp model.Response
	err  error
	got  model.Request
}

func (f *fakeModel) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	f.got = req
	return f.resp, f.err
}

type fakeDispatcher struct {
	result tools.Result
	err    error
	got    tools.Invocation
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	f.got = inv
	return f.result, f.err
}

func TestModelCallTranslatesToolCalls(t *testing.T) {
	fm := &fakeModel{resp: model.Response{
		ToolCalls: []model.RequestedToolCall{{CallID: "call-1", Name: "shell", Arguments: `{"command":["ls"]}`}},
	}}
	a := &Activities{Model: fm}

	out, err := a.ModelCall(context.Background(), agent.ModelCallInput{
		Model: "gpt-4o",
		Input: []agent.ConversationItem{{Kind: agent.ItemUserMessage, Text: "list files"}},
	})
	require.NoError(t, err)

	result, ok := out.(agent.ModelCallOutput)
	require.True(t, ok)
	require.Len(t, result.Items, 1)
	assert.Equal(t, agent.ItemToolCall, result.Items[0].Kind)
	assert.Equal(t, "shell", result.Items[0].ToolCall.ToolName)
	assert.Equal(t, "list files", fm.got.Messages[0].Content)
}

func TestModelCallRejectsWrongInputType(t *testing.T) {
	a := &Activities{Model: &fakeModel{}}
	_, err := a.ModelCall(context.Background(), "not the right type")
	assert.Error(t, err)
}

func TestToolExecDispatchesAndWrapsOutput(t *testing.T) {
	fd := &fakeDispatcher{result: tools.Result{Output: "hello world", ExitCode: 0}}
	a := &Activities{Dispatcher: fd}

	out, err := a.ToolExec(context.Background(), agent.ToolExecInput{
		ToolName:  "shell",
		CallID:    "call-1",
		Arguments: `{"command":["echo","hello world"]}`,
	})
	require.NoError(t, err)

	result, ok := out.(agent.ToolExecOutput)
	require.True(t, ok)
	assert.Equal(t, "hello world", result.Output)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "shell", fd.got.ToolName)
}

func TestToolExecPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &Activities{Dispatcher: &fakeDispatcher{err: context.Canceled}}
	_, err := a.ToolExec(ctx, agent.ToolExecInput{ToolName: "shell", CallID: "call-1"})
	assert.ErrorIs(t, err, context.Canceled)
}
