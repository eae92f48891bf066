package agent

import (
	"encoding/json"
	"time"

	"github.com/agentharness/codex-temporal/internal/determinism"
	"github.com/agentharness/codex-temporal/internal/engine"
	"github.com/agentharness/codex-temporal/internal/events"
	"github.com/agentharness/codex-temporal/internal/tools"
)

const (
	toolExecTimeout   = 600 * time.Second
	toolExecHeartbeat = 30 * time.Second
)

// toolHandler implements the in-workflow side of tool dispatch: approval
// gating per the configured policy, suspension on a pending approval, and
// conversion of the eventual tool_exec result (or synthesized denial) into
// the typed item fed back to the model.
type toolHandler struct {
	wc    engine.WorkflowContext
	scope determinism.Scope
	state *state
	buf   *events.Buffer
}

// handle runs the algorithm described in the tool handler's approval-gating
// contract: parse the call, decide whether approval is required, suspend if
// so, then dispatch tool_exec or synthesize a denial.
func (h *toolHandler) handle(turnID string, call ToolCall) ToolOutputItem {
	command := extractCommand(call.Arguments)

	if h.requiresApproval(command) {
		h.state.lock()
		h.state.pendingApproval = &pendingApproval{callID: call.CallID}
		h.state.unlock()

		h.buf.Append(events.Event{
			ID: h.scope.Random.UUID().String(),
			Msg: events.ExecApprovalRequest(call.CallID, turnID, command, h.state.input.workingDir(), ""),
		})

		_ = h.wc.Await(h.wc.Context(), func() bool {
			h.state.lock()
			defer h.state.unlock()
			return h.state.pendingApproval != nil && h.state.pendingApproval.decision != nil
		})

		h.state.lock()
		approved := false
		if h.state.pendingApproval != nil && h.state.pendingApproval.decision != nil {
			approved = *h.state.pendingApproval.decision
		}
		h.state.pendingApproval = nil
		h.state.unlock()

		if !approved {
			return ToolOutputItem{
				CallID: call.CallID,
				Body: ToolOutputBody{
					Output:   "Tool execution was denied by the user.",
					Metadata: ToolOutputMeta{ExitCode: 1},
				},
				Success: false,
			}
		}
	}

	var out ToolExecOutput
	err := h.wc.ExecuteActivity(h.wc.Context(), engine.ActivityRequest{
		Name:      ActivityToolExec,
		Timeout:   toolExecTimeout,
		Heartbeat: toolExecHeartbeat,
		Input: ToolExecInput{
			ToolName:  call.ToolName,
			CallID:    call.CallID,
			Arguments: call.Arguments,
			Model:     h.state.input.Model,
			Cwd:       h.state.input.workingDir(),
		},
	}, &out)
	if err != nil {
		return ToolOutputItem{
			CallID: call.CallID,
			Body: ToolOutputBody{
				Output:   "Tool execution failed: " + err.Error(),
				Metadata: ToolOutputMeta{ExitCode: 1},
			},
			Success: false,
		}
	}
	return out.IntoResponseItem()
}

// requiresApproval implements the per-policy approval decision from the
// tool handler's algorithm.
func (h *toolHandler) requiresApproval(command []string) bool {
	switch h.state.input.ApprovalPolicy {
	case ApprovalNever:
		return false
	case ApprovalUnlessTrusted:
		return !tools.IsKnownSafe(command)
	case ApprovalOnRequest, ApprovalOnFailure:
		return true
	default:
		// Fail closed on an unrecognized policy value.
		return true
	}
}

// workingDir is a placeholder cwd resolution; a full deployment would carry
// a configured working directory per run rather than always using the
// worker process's own directory.
func (in WorkflowInput) workingDir() string {
	return "."
}

// extractCommand pulls a best-effort display command vector out of a tool
// call's raw JSON arguments, used only for the ExecApprovalRequest event
// and the safety classifier — the actual dispatch still passes the raw
// arguments string through unmodified. Arguments that aren't a JSON object
// with a "command" array (e.g. read_file, http_fetch) yield nil, which the
// safety classifier treats as untrusted.
func extractCommand(argumentsJSON string) []string {
	var args struct {
		Command []string `json:"command"`
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return nil
	}
	return args.Command
}
