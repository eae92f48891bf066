package engine

import "context"

type (
	workflowIDKey struct{}
	runIDKey      struct{}
)

// WithIDs attaches the workflow and run identifiers to a context, so that
// logging and activities invoked from deep inside the run loop can recover
// them without threading extra parameters through every call.
func WithIDs(ctx context.Context, workflowID, runID string) context.Context {
	ctx = context.WithValue(ctx, workflowIDKey{}, workflowID)
	ctx = context.WithValue(ctx, runIDKey{}, runID)
	return ctx
}

// WorkflowIDFromContext recovers the workflow id set by WithIDs.
func WorkflowIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(workflowIDKey{}).(string)
	return v, ok
}

// RunIDFromContext recovers the run id set by WithIDs.
func RunIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey{}).(string)
	return v, ok
}
