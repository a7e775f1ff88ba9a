// Package logger adapts the shared zap logger to the narrow interface the
// use cases consume, and lets each component attach constant fields to
// every entry it emits.
package logger

import (
	"context"
)

// Logger defines the logging interface used throughout the application.
// External loggers that implement these methods can be wrapped with ZapAdapter.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Debug(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, err error, fields map[string]any)
}

// ZapAdapter wraps a Logger and merges a fixed set of base fields into
// every call. Base fields identify the emitting component; call fields
// win on key collisions.
type ZapAdapter struct {
	log  Logger
	base map[string]any
}

// NewZapAdapter creates a ZapAdapter with no base fields.
func NewZapAdapter(log Logger) *ZapAdapter {
	return &ZapAdapter{log: log}
}

// With returns a child adapter whose entries carry the given fields in
// addition to the parent's. The parent is not modified.
func (a *ZapAdapter) With(fields map[string]any) *ZapAdapter {
	merged := make(map[string]any, len(a.base)+len(fields))
	for k, v := range a.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ZapAdapter{log: a.log, base: merged}
}

func (a *ZapAdapter) merge(fields map[string]any) map[string]any {
	if len(a.base) == 0 {
		return fields
	}
	merged := make(map[string]any, len(a.base)+len(fields))
	for k, v := range a.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

// Info logs an info message.
func (a *ZapAdapter) Info(ctx context.Context, msg string, fields map[string]any) {
	a.log.Info(ctx, msg, a.merge(fields))
}

// Debug logs a debug message.
func (a *ZapAdapter) Debug(ctx context.Context, msg string, fields map[string]any) {
	a.log.Debug(ctx, msg, a.merge(fields))
}

// Warn logs a warning message.
func (a *ZapAdapter) Warn(ctx context.Context, msg string, fields map[string]any) {
	a.log.Warn(ctx, msg, a.merge(fields))
}

// Error logs an error message.
func (a *ZapAdapter) Error(ctx context.Context, msg string, err error, fields map[string]any) {
	a.log.Error(ctx, msg, err, a.merge(fields))
}

// Nop discards everything. Used where a component requires a logger but
// the caller has nothing useful to attach, mostly in tests.
type Nop struct{}

func (Nop) Info(context.Context, string, map[string]any)         {}
func (Nop) Debug(context.Context, string, map[string]any)        {}
func (Nop) Warn(context.Context, string, map[string]any)         {}
func (Nop) Error(context.Context, string, error, map[string]any) {}
