// Package session implements the client-side session adapter: a
// submit(op)/next_event() API that presents a UI-friendly surface over
// workflow signals and queries, with local event buffering and
// exponential-backoff polling of the watermark query.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentharness/codex-temporal/internal/agent"
	"github.com/agentharness/codex-temporal/internal/engine"
	"github.com/agentharness/codex-temporal/internal/events"
	"github.com/agentharness/codex-temporal/internal/runstore"
	"github.com/agentharness/codex-temporal/internal/storage"
)

const (
	pollIntervalMin = 50 * time.Millisecond
	pollIntervalMax = 500 * time.Millisecond
)

// Decision is the three-way UI approval decision; it collapses to a bool
// at the signal boundary per the approval-normalization rule: any variant
// whose name contains "Approved" maps to true.
type Decision string

const (
	DecisionApproved                    Decision = "approved"
	DecisionApprovedForSession           Decision = "approved_for_session"
	DecisionApprovedExecpolicyAmendment Decision = "approved_execpolicy_amendment"
	DecisionDenied                       Decision = "denied"
	DecisionDeferred                     Decision = "deferred"
)

func normalizeApproval(d Decision) bool {
	switch d {
	case DecisionApproved, DecisionApprovedForSession, DecisionApprovedExecpolicyAmendment:
		return true
	default:
		return false
	}
}

// Op is the tagged union of operations a UI submits.
type Op struct {
	Kind OpKind

	UserTurnMessage string
	ApprovalCallID  string
	ApprovalDecision Decision
}

// OpKind tags the Op variant.
type OpKind string

const (
	OpUserTurn      OpKind = "user_turn"
	OpExecApproval  OpKind = "exec_approval"
	OpShutdown      OpKind = "shutdown"
	OpInterrupt     OpKind = "interrupt"
)

// Adapter is one per UI connection. It obtains its workflow handle only by
// starting the workflow on the first UserTurn; attaching to an
// already-running workflow by WorkflowID (for example after a client crash)
// is not supported.
type Adapter struct {
	eng        engine.Engine
	workflowID string
	input      agent.WorkflowInput

	mu           sync.Mutex
	started      bool
	eventsIndex  int
	eventBuffer  []events.Event
	turnCounter  int
	shutdown     bool
	handle       engine.WorkflowHandle
	logger       engine.Logger

	// Store and RunStore are optional durable backends. When nil, the
	// adapter falls back to purely local event buffering and run tracking
	// with no durable side effects. Set before the first Submit call.
	Store    storage.Store
	RunStore runstore.Store
}

// New builds an Adapter for a not-yet-started workflow. input seeds the
// workflow on the first UserTurn submission.
func New(eng engine.Engine, workflowID string, input agent.WorkflowInput, logger engine.Logger) *Adapter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Adapter{eng: eng, workflowID: workflowID, input: input, logger: logger}
}

// Submit dispatches one Op per the adapter's operation table, returning a
// call/turn identifier (or a sentinel for no-op operations).
func (a *Adapter) Submit(ctx context.Context, op Op) (string, error) {
	switch op.Kind {
	case OpUserTurn:
		return a.submitUserTurn(ctx, op.UserTurnMessage)
	case OpExecApproval:
		approved := normalizeApproval(op.ApprovalDecision)
		if err := a.signal(ctx, agent.SignalApproval, agent.ApprovalInput{
			CallID: op.ApprovalCallID, Approved: approved,
		}); err != nil {
			return "", err
		}
		return op.ApprovalCallID, nil
	case OpShutdown:
		a.mu.Lock()
		started := a.started
		a.shutdown = true
		a.mu.Unlock()
		if !started {
			return "noop", nil
		}
		if err := a.signal(ctx, agent.SignalRequestShutdown, struct{}{}); err != nil {
			return "", err
		}
		return "shutdown", nil
	case OpInterrupt:
		// No interrupt signal exists yet; logged and treated as a no-op per
		// the open question on Op::Interrupt.
		a.logger.Warn("interrupt submitted with no corresponding workflow signal; treating as no-op")
		return "interrupt-noop", nil
	default:
		a.logger.Warn("unrecognized op submitted; treating as no-op", "kind", string(op.Kind))
		return "noop", nil
	}
}

func (a *Adapter) submitUserTurn(ctx context.Context, message string) (string, error) {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()

	if !started {
		a.mu.Lock()
		a.turnCounter++
		a.mu.Unlock()

		startInput := a.input
		startInput.UserMessage = message

		h, err := a.eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
			ID:       a.workflowID,
			Workflow: agent.WorkflowName,
			Input:    startInput,
		})
		if err != nil {
			return "", fmt.Errorf("session: start workflow %s: %w", a.workflowID, err)
		}

		a.mu.Lock()
		a.handle = h
		a.started = true
		a.mu.Unlock()

		if a.RunStore != nil {
			if err := a.RunStore.Create(ctx, runstore.Record{
				RunID:     a.workflowID,
				AgentID:   startInput.Model,
				Status:    runstore.StatusRunning,
				StartedAt: time.Now(),
			}); err != nil {
				a.logger.Warn("run_store create failed", "error", err.Error())
			}
		}
		return "turn-0", nil
	}

	a.mu.Lock()
	a.turnCounter++
	turnID := fmt.Sprintf("turn-%d", a.turnCounter)
	a.mu.Unlock()

	if err := a.signal(ctx, agent.SignalUserTurn, agent.UserTurnInput{TurnID: turnID, Message: message}); err != nil {
		return "", err
	}
	return turnID, nil
}

func (a *Adapter) signal(ctx context.Context, name string, payload any) error {
	a.mu.Lock()
	h := a.handle
	a.mu.Unlock()
	if h == nil {
		return fmt.Errorf("session: workflow %s not started", a.workflowID)
	}
	return h.Signal(ctx, name, payload)
}

// NextEvent is a pull-based stream: drain the local buffer first, else
// poll get_events_since with exponential backoff, doubling from 50ms to a
// ceiling of 500ms. When a query fails while the local shutdown flag is
// set, it returns a synthesized terminal ShutdownComplete event at once,
// without retrying; without the flag it backs off and retries.
func (a *Adapter) NextEvent(ctx context.Context) (events.Event, error) {
	a.mu.Lock()
	if len(a.eventBuffer) > 0 {
		e := a.eventBuffer[0]
		a.eventBuffer = a.eventBuffer[1:]
		a.mu.Unlock()
		a.persist(ctx, e)
		a.recordCompletion(ctx, e)
		return e, nil
	}
	a.mu.Unlock()

	interval := pollIntervalMin
	for {
		a.mu.Lock()
		h := a.handle
		from := a.eventsIndex
		shutdown := a.shutdown
		a.mu.Unlock()

		if h == nil {
			select {
			case <-ctx.Done():
				return events.Event{}, ctx.Err()
			case <-time.After(interval):
			}
			continue
		}

		raw, err := h.Query(ctx, agent.QueryEventsSince, from)
		if err != nil {
			if shutdown {
				synthesized := events.Event{ID: "", Msg: events.ShutdownComplete()}
				a.recordCompletion(ctx, synthesized)
				return synthesized, nil
			}
			a.logger.Warn("get_events_since query failed; backing off", "error", err.Error())
			select {
			case <-ctx.Done():
				return events.Event{}, ctx.Err()
			case <-time.After(interval):
			}
			interval = nextInterval(interval)
			continue
		}

		result, ok := raw.(agent.EventsSinceResult)
		if !ok {
			a.logger.Warn("malformed get_events_since response; treating as empty")
			result = agent.EventsSinceResult{Watermark: from}
		}

		a.mu.Lock()
		a.eventsIndex = result.Watermark
		a.mu.Unlock()

		if len(result.Events) > 0 {
			a.mu.Lock()
			a.eventBuffer = append(a.eventBuffer, result.Events[1:]...)
			first := result.Events[0]
			a.mu.Unlock()
			a.persist(ctx, first)
			a.recordCompletion(ctx, first)
			return first, nil
		}

		select {
		case <-ctx.Done():
			return events.Event{}, ctx.Err()
		case <-time.After(interval):
		}
		interval = nextInterval(interval)
	}
}

// persist best-effort mirrors an event into the durable storage backend, if
// one is configured. Storage failures never block event delivery to the UI.
func (a *Adapter) persist(ctx context.Context, e events.Event) {
	if a.Store == nil {
		return
	}
	data, err := json.Marshal(e.Msg)
	if err != nil {
		return
	}
	if err := a.Store.Save(ctx, []storage.Item{{
		RunID: a.workflowID,
		Kind:  string(e.Msg.Type),
		Data:  string(data),
	}}); err != nil {
		a.logger.Warn("storage save failed", "error", err.Error())
	}
}

// recordCompletion updates the run-store's lifecycle status once a terminal
// event streams through, so the operational dashboard never has to poll the
// workflow itself to know a run finished.
func (a *Adapter) recordCompletion(ctx context.Context, e events.Event) {
	if a.RunStore == nil || e.Msg.Type != events.KindShutdownComplete {
		return
	}
	now := time.Now()
	if err := a.RunStore.UpdateStatus(ctx, a.workflowID, runstore.StatusCompleted, &now); err != nil {
		a.logger.Warn("run_store update failed", "error", err.Error())
	}
}

func nextInterval(cur time.Duration) time.Duration {
	next := cur * 2
	if next > pollIntervalMax {
		return pollIntervalMax
	}
	return next
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
