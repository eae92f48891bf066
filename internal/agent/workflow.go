package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentharness/codex-temporal/internal/determinism"
	"github.com/agentharness/codex-temporal/internal/engine"
	"github.com/agentharness/codex-temporal/internal/events"
	"github.com/agentharness/codex-temporal/internal/tools"
)

const (
	WorkflowName = "CodexWorkflow"
	TaskQueue    = "codex-temporal"

	SignalUserTurn        = "receive_user_turn"
	SignalApproval        = "receive_approval"
	SignalRequestShutdown = "request_shutdown"
	QueryEventsSince      = "get_events_since"

	// ActivityModelCall and ActivityToolExec are the two activity names the
	// workflow and tool handler dispatch through the engine. They live here,
	// not in the activities package, so the workflow body never needs to
	// import the activities package (which imports agent for its input/
	// output types — importing it back would cycle).
	ActivityModelCall = "model_call"
	ActivityToolExec  = "tool_exec"

	// modelCallTimeout bounds a single model_call activity attempt. It is a
	// workflow-level constant, not configuration, because the workflow body
	// must stay deterministic across replay regardless of the worker's
	// config.Worker.ModelTimeout (which bounds the activity's registration
	// default, not this per-call override).
	modelCallTimeout = 300 * time.Second
)

// pendingApproval tracks at most one outstanding approval request at a
// time, set by the tool handler before it suspends and cleared immediately
// once a decision is read.
type pendingApproval struct {
	callID   string
	decision *bool
}

// state is the workflow's private, engine-owned data: the run loop and the
// three signal-draining goroutines are its only mutators, and all access goes
// through the mutex since Go, Await, and ExecuteActivity interleave in ways
// the Temporal scheduler — not a real OS thread schedule — controls.
type state struct {
	mu sync.Mutex

	input              WorkflowInput
	userTurns          []UserTurnInput
	pendingApproval    *pendingApproval
	shutdownRequested  bool
	conversationHistory []ConversationItem
	turnCounter        int
}

func (s *state) lock()   { s.mu.Lock() }
func (s *state) unlock() { s.mu.Unlock() }

// EventsSinceResult is the get_events_since query's response shape.
type EventsSinceResult struct {
	Events    []events.Event `json:"events"`
	Watermark int            `json:"watermark"`
}

// Run is the agent workflow body. It is registered with the engine as the
// handler for WorkflowName and is written entirely against engine.WorkflowContext
// so it is identical whether served by the Temporal adapter or the in-memory
// one used for tests.
func Run(wc engine.WorkflowContext, rawInput any) (any, error) {
	input, ok := rawInput.(WorkflowInput)
	if !ok {
		return nil, fmt.Errorf("agent: workflow expected WorkflowInput, got %T", rawInput)
	}

	scope := determinism.NewScope(wc.RandomSeed(), wc.Now())
	buf := events.NewBuffer()
	st := &state{input: input}

	if input.UserMessage != "" {
		st.userTurns = append(st.userTurns, UserTurnInput{TurnID: "turn-0", Message: input.UserMessage})
	}

	if err := wc.SetQueryHandler(QueryEventsSince, func(args ...any) (any, error) {
		from := 0
		if len(args) > 0 {
			if f, ok := args[0].(int); ok {
				from = f
			} else if f, ok := args[0].(float64); ok {
				from = int(f)
			}
		}
		evs, watermark := buf.Since(from)
		return EventsSinceResult{Events: evs, Watermark: watermark}, nil
	}); err != nil {
		return nil, fmt.Errorf("agent: register query handler: %w", err)
	}

	userTurnCh := wc.SignalChannel(SignalUserTurn)
	approvalCh := wc.SignalChannel(SignalApproval)
	shutdownCh := wc.SignalChannel(SignalRequestShutdown)

	wc.Go(func(ctx context.Context) {
		for {
			var in UserTurnInput
			if err := userTurnCh.Receive(ctx, &in); err != nil {
				return
			}
			st.lock()
			st.userTurns = append(st.userTurns, in)
			st.unlock()
		}
	})
	wc.Go(func(ctx context.Context) {
		for {
			var in ApprovalInput
			if err := approvalCh.Receive(ctx, &in); err != nil {
				return
			}
			st.lock()
			if st.pendingApproval != nil && st.pendingApproval.callID == in.CallID {
				approved := in.Approved
				st.pendingApproval.decision = &approved
			}
			st.unlock()
		}
	})
	wc.Go(func(ctx context.Context) {
		var in struct{}
		if err := shutdownCh.Receive(ctx, &in); err != nil {
			return
		}
		st.lock()
		st.shutdownRequested = true
		st.unlock()
	})

	handler := &toolHandler{wc: wc, scope: scope, state: st, buf: buf}

	toolSpecs := make([]ToolSpec, 0, len(tools.Catalog()))
	for _, t := range tools.Catalog() {
		toolSpecs = append(toolSpecs, ToolSpec{Name: t.Name, Description: t.Description, ParamSchema: t.ParamSchemaJSON})
	}

	totalIterations := 0
	var lastAgentMessage string

	for {
		if err := wc.Await(wc.Context(), func() bool {
			st.lock()
			defer st.unlock()
			return len(st.userTurns) > 0 || st.shutdownRequested
		}); err != nil {
			return nil, err
		}

		st.lock()
		if len(st.userTurns) == 0 && st.shutdownRequested {
			st.unlock()
			break
		}
		turn := st.userTurns[0]
		st.userTurns = st.userTurns[1:]
		st.unlock()

		buf.Append(events.Event{
			ID:  scope.Random.UUID().String(),
			Msg: events.TurnStarted(turn.TurnID, 0, string(input.WebSearchMode)),
		})

		st.lock()
		st.conversationHistory = append(st.conversationHistory, ConversationItem{
			Kind: ItemUserMessage,
			Text: turn.Message,
		})
		st.unlock()

		iterations := 0
		for iterations < MaxIterations {
			iterations++
			totalIterations++

			st.lock()
			historySnapshot := append([]ConversationItem(nil), st.conversationHistory...)
			st.unlock()

			var modelOut ModelCallOutput
			err := wc.ExecuteActivity(wc.Context(), engine.ActivityRequest{
				Name:    ActivityModelCall,
				Timeout: modelCallTimeout,
				Input: ModelCallInput{
					ConversationID:    wc.WorkflowID(),
					Input:             historySnapshot,
					Tools:             toolSpecs,
					ParallelToolCalls: false,
					Instructions:      input.Instructions,
					Model:             input.Model,
				},
			}, &modelOut)
			if err != nil {
				buf.Append(events.Event{
					ID:  scope.Random.UUID().String(),
					Msg: events.Warning(fmt.Sprintf("model_call failed: %v", err)),
				})
				break
			}

			st.lock()
			st.conversationHistory = append(st.conversationHistory, modelOut.Items...)
			st.unlock()

			hasToolCall := false
			for _, item := range modelOut.Items {
				switch item.Kind {
				case ItemAssistantMessage:
					lastAgentMessage = item.Text
					buf.Append(events.Event{
						ID:  scope.Random.UUID().String(),
						Msg: events.AgentMessage(item.Text),
					})
				case ItemToolCall:
					hasToolCall = true
					outItem := handler.handle(turn.TurnID, *item.ToolCall)
					st.lock()
					st.conversationHistory = append(st.conversationHistory, ConversationItem{
						Kind:    ItemToolOutput,
						ToolOut: &outItem,
					})
					st.unlock()
				}
			}

			if !hasToolCall {
				break
			}
			if iterations == MaxIterations {
				buf.Append(events.Event{
					ID:  scope.Random.UUID().String(),
					Msg: events.Warning("max iterations reached"),
				})
			}
		}

		buf.Append(events.Event{
			ID:  scope.Random.UUID().String(),
			Msg: events.TurnComplete(turn.TurnID, lastAgentMessage),
		})

		st.lock()
		shutdown := st.shutdownRequested
		st.unlock()
		if shutdown {
			break
		}
	}

	buf.Append(events.Event{
		ID:  scope.Random.UUID().String(),
		Msg: events.ShutdownComplete(),
	})

	return WorkflowOutput{LastAgentMessage: lastAgentMessage, Iterations: totalIterations}, nil
}
