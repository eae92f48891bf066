package telemetry

import (
	"context"

	"github.com/agentharness/codex-temporal/internal/engine"
)

// EngineLogger binds a context-ful telemetry.Logger to the context-free
// engine.Logger surface. The Temporal adapter does not use it (it builds
// engine.Logger directly off workflow.GetLogger); cmd/client passes one to
// the session adapter so its warnings go through the Clue logger.
type EngineLogger struct {
	Ctx context.Context
	Log Logger
}

func (l EngineLogger) Debug(msg string, kv ...any) { l.Log.Debug(l.Ctx, msg, kv...) }
func (l EngineLogger) Info(msg string, kv ...any)  { l.Log.Info(l.Ctx, msg, kv...) }
func (l EngineLogger) Warn(msg string, kv ...any)  { l.Log.Warn(l.Ctx, msg, kv...) }
func (l EngineLogger) Error(msg string, kv ...any) { l.Log.Error(l.Ctx, msg, kv...) }

var _ engine.Logger = EngineLogger{}
