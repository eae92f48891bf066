package tools

import "context"

// Invocation is the decoded form of a tool call passed to a Dispatcher.
type Invocation struct {
	ToolName  string
	CallID    string
	Arguments string
	Cwd       string
}

// Result is what a Dispatcher returns after running an invocation. Output
// is the combined stdout (plus a formatted stderr section when non-empty,
// matching how a child-process-backed tool composes its two streams), and
// ExitCode is the process exit status or a dispatcher-defined equivalent
// for non-process tools.
type Result struct {
	Output   string
	ExitCode int
}

// Dispatcher is the black-box external tool registry boundary: a function
// from (tool_name, arguments, cwd) to a typed result. The tool_exec
// activity is a thin adapter over a Dispatcher; this repository's own
// Registry is one concrete implementation of it, not the only one a real
// deployment would use.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv Invocation) (Result, error)
}
