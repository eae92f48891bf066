// Package agent implements the long-lived interactive workflow that drives
// the model-call / tool-execution loop, and the in-workflow tool handler
// that gates tool execution behind the configured approval policy.
package agent

// ApprovalPolicy controls whether a tool invocation requires explicit user
// sign-off before it is dispatched.
type ApprovalPolicy string

const (
	ApprovalNever         ApprovalPolicy = "never"
	ApprovalUnlessTrusted ApprovalPolicy = "unless_trusted"
	ApprovalOnRequest     ApprovalPolicy = "on_request"
	ApprovalOnFailure     ApprovalPolicy = "on_failure"
)

// WebSearchMode controls whether the model is given live web search tools.
type WebSearchMode string

const (
	WebSearchLive     WebSearchMode = "live"
	WebSearchCached   WebSearchMode = "cached"
	WebSearchDisabled WebSearchMode = "disabled"
)

// MaxIterations bounds the inner model-call/tool-exec loop within a single
// turn; exhausting it breaks the loop with a warning rather than looping
// forever against a misbehaving or adversarial model.
const MaxIterations = 50

// WorkflowInput is the immutable launch configuration for a workflow run.
type WorkflowInput struct {
	UserMessage    string         `json:"user_message"`
	Model          string         `json:"model"`
	Instructions   string         `json:"instructions"`
	ApprovalPolicy ApprovalPolicy `json:"approval_policy"`
	WebSearchMode  WebSearchMode  `json:"web_search_mode,omitempty"`
}

// WorkflowOutput is the terminal result of a workflow run.
type WorkflowOutput struct {
	LastAgentMessage string `json:"last_agent_message,omitempty"`
	Iterations       int    `json:"iterations"`
}

// UserTurnInput is the payload of the receive_user_turn signal.
type UserTurnInput struct {
	TurnID  string `json:"turn_id"`
	Message string `json:"message"`
}

// ApprovalInput is the payload of the receive_approval signal.
type ApprovalInput struct {
	CallID   string `json:"call_id"`
	Approved bool   `json:"approved"`
}

// ToolSpec describes one callable tool in the catalog handed to the model.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParamSchema string `json:"param_schema_json"`
}

// ToolCall is a model-issued request to invoke a tool.
type ToolCall struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`
}

// ToolOutputItem is the response_input_item fed back to the model after a
// tool call resolves, whether by execution or by synthesized denial.
type ToolOutputItem struct {
	CallID  string             `json:"call_id"`
	Body    ToolOutputBody     `json:"body"`
	Success bool               `json:"success"`
}

// ToolOutputBody is the function_call_output envelope body.
type ToolOutputBody struct {
	Output   string           `json:"output"`
	Metadata ToolOutputMeta   `json:"metadata"`
}

// ToolOutputMeta carries the exit code and timing of a tool invocation.
type ToolOutputMeta struct {
	ExitCode        int     `json:"exit_code"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ConversationItemKind tags the variant held by a ConversationItem.
type ConversationItemKind string

const (
	ItemUserMessage      ConversationItemKind = "user_message"
	ItemAssistantMessage ConversationItemKind = "assistant_message"
	ItemToolCall         ConversationItemKind = "tool_call"
	ItemToolOutput       ConversationItemKind = "tool_output"
)

// ConversationItem is one entry of conversation_history. Exactly the fields
// relevant to Kind are populated. The model_call activity translates these
// items into model.Message values before calling the provider.
type ConversationItem struct {
	Kind ConversationItemKind `json:"kind"`

	Text     string          `json:"text,omitempty"`
	ToolCall *ToolCall       `json:"tool_call,omitempty"`
	ToolOut  *ToolOutputItem `json:"tool_output,omitempty"`
}

// ModelCallInput is the model_call activity's input contract.
type ModelCallInput struct {
	ConversationID     string              `json:"conversation_id"`
	Input              []ConversationItem  `json:"input"`
	Tools              []ToolSpec          `json:"tools"`
	ParallelToolCalls  bool                `json:"parallel_tool_calls"`
	Instructions       string              `json:"instructions"`
	Model              string              `json:"model"`
}

// ModelCallOutput is the model_call activity's output contract.
type ModelCallOutput struct {
	Items []ConversationItem `json:"items"`
}

// ToolExecInput is the tool_exec activity's input contract.
type ToolExecInput struct {
	ToolName  string `json:"tool_name"`
	CallID    string `json:"call_id"`
	Arguments string `json:"arguments"`
	Model     string `json:"model"`
	Cwd       string `json:"cwd"`
}

// ToolExecOutput is the tool_exec activity's output contract.
type ToolExecOutput struct {
	CallID   string `json:"call_id"`
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

// IntoResponseItem converts a tool_exec result into the typed conversation
// item fed back to the model.
func (o ToolExecOutput) IntoResponseItem() ToolOutputItem {
	return ToolOutputItem{
		CallID: o.CallID,
		Body: ToolOutputBody{
			Output: o.Output,
			Metadata: ToolOutputMeta{
				ExitCode:        o.ExitCode,
				DurationSeconds: 0,
			},
		},
		Success: o.ExitCode == 0,
	}
}
