// Package events defines the structured event envelope emitted by the agent
// workflow and the append-only buffer it is recorded into. Event schemas are
// versioned independently of the buffer itself: the buffer only ever stores
// and returns opaque, JSON-serializable values.
package events

// Kind tags the concrete payload carried by an Event.
type Kind string

const (
	KindTurnStarted         Kind = "turn_started"
	KindTurnComplete        Kind = "turn_complete"
	KindExecApprovalRequest Kind = "exec_approval_request"
	KindAgentMessage        Kind = "agent_message"
	KindAgentMessageDelta   Kind = "agent_message_delta"
	KindShutdownComplete    Kind = "shutdown_complete"
	KindWarning             Kind = "warning"
)

// Event is the envelope appended to the buffer. Msg holds one of the
// Kind-tagged payload structs below; the id is assigned by the emitter
// (the run loop derives it from the determinism scope's UUID source so
// replays reproduce identical ids).
type Event struct {
	ID  string `json:"id"`
	Msg Msg    `json:"msg"`
}

// Msg is the tagged union of event payloads. Type selects which of the
// optional fields are meaningful; unmarshaling preserves unknown fields
// as zero values rather than erroring, matching the run loop's preference
// for best-effort recovery over a hard failure on a malformed payload.
type Msg struct {
	Type Kind `json:"type"`

	// TurnStarted / TurnComplete
	TurnID                 string `json:"turn_id,omitempty"`
	ModelContextWindow     int64  `json:"model_context_window,omitempty"`
	CollaborationModeKind  string `json:"collaboration_mode_kind,omitempty"`
	LastAgentMessage       string `json:"last_agent_message,omitempty"`

	// ExecApprovalRequest
	CallID  string   `json:"call_id,omitempty"`
	Command []string `json:"command,omitempty"`
	Cwd     string   `json:"cwd,omitempty"`
	Reason  string   `json:"reason,omitempty"`

	// AgentMessage / AgentMessageDelta
	Text  string `json:"text,omitempty"`
	Delta string `json:"delta,omitempty"`

	// Warning
	Warning string `json:"warning,omitempty"`
}

// TurnStarted builds a TurnStarted event payload.
func TurnStarted(turnID string, contextWindow int64, collaborationMode string) Msg {
	return Msg{
		Type:                  KindTurnStarted,
		TurnID:                turnID,
		ModelContextWindow:    contextWindow,
		CollaborationModeKind: collaborationMode,
	}
}

// TurnComplete builds a TurnComplete event payload.
func TurnComplete(turnID, lastAgentMessage string) Msg {
	return Msg{Type: KindTurnComplete, TurnID: turnID, LastAgentMessage: lastAgentMessage}
}

// ExecApprovalRequest builds an ExecApprovalRequest event payload.
func ExecApprovalRequest(callID, turnID string, command []string, cwd, reason string) Msg {
	return Msg{
		Type:    KindExecApprovalRequest,
		CallID:  callID,
		TurnID:  turnID,
		Command: command,
		Cwd:     cwd,
		Reason:  reason,
	}
}

// AgentMessage builds an AgentMessage event payload.
func AgentMessage(text string) Msg {
	return Msg{Type: KindAgentMessage, Text: text}
}

// AgentMessageDelta builds an AgentMessageDelta event payload.
func AgentMessageDelta(delta string) Msg {
	return Msg{Type: KindAgentMessageDelta, Delta: delta}
}

// ShutdownComplete builds a ShutdownComplete event payload.
func ShutdownComplete() Msg {
	return Msg{Type: KindShutdownComplete}
}

// Warning builds a Warning event payload, used for best-effort recovery
// notices (MAX_ITERATIONS exhaustion, malformed query responses) that must
// not crash the run loop.
func Warning(text string) Msg {
	return Msg{Type: KindWarning, Warning: text}
}
