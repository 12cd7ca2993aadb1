package statemachine

import (
	"context"
	"log/slog"
	"time"

	"github.com/amp-labs/amp-fsm/logger"
)

// Logger provides logging hooks for state machine execution.
type Logger interface {
	TransitionExecuted(ctx context.Context, machine, from, to, reason string)
	TransitionRejected(ctx context.Context, machine, from, reason, cause string)
	StateOverridden(ctx context.Context, machine, from, to string)
	ActionCompleted(ctx context.Context, machine string, phase Phase, action string, duration time.Duration, err error)
	CommandFailed(ctx context.Context, machine string, err error)
}

// Rejection causes reported to Logger.TransitionRejected and to metrics.
const (
	causeNoTransition = "no_transition"
	causeSameState    = "same_state"
	causeGuard        = "guard"
)

// DefaultLogger implements Logger on top of slog. Context attributes added
// through the logger package are included in every record.
type DefaultLogger struct {
	base *slog.Logger
}

// NewDefaultLogger creates a logger that writes to slog.Default().
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

// NewSlogLogger creates a logger that writes to the given slog logger.
func NewSlogLogger(base *slog.Logger) *DefaultLogger {
	return &DefaultLogger{base: base}
}

func (l *DefaultLogger) get(ctx context.Context, machine string) *slog.Logger {
	return logger.From(logger.WithMachine(ctx, machine), l.base)
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, machine, from, to, reason string) {
	l.get(ctx, machine).InfoContext(ctx, "Transition executed",
		"from", from,
		"to", to,
		"reason", reason,
	)
}

func (l *DefaultLogger) TransitionRejected(ctx context.Context, machine, from, reason, cause string) {
	l.get(ctx, machine).DebugContext(ctx, "Transition rejected",
		"from", from,
		"reason", reason,
		"cause", cause,
	)
}

func (l *DefaultLogger) StateOverridden(ctx context.Context, machine, from, to string) {
	l.get(ctx, machine).InfoContext(ctx, "State overridden",
		"from", from,
		"to", to,
	)
}

func (l *DefaultLogger) ActionCompleted(
	ctx context.Context, machine string, phase Phase, action string, duration time.Duration, err error,
) {
	if err != nil {
		l.get(ctx, machine).ErrorContext(ctx, "Action completed with error",
			"phase", string(phase),
			"action", action,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)

		return
	}

	l.get(ctx, machine).DebugContext(ctx, "Action completed",
		"phase", string(phase),
		"action", action,
		"duration_ms", duration.Milliseconds(),
	)
}

func (l *DefaultLogger) CommandFailed(ctx context.Context, machine string, err error) {
	l.get(ctx, machine).ErrorContext(ctx, "Deferred command failed", "error", err)
}

var _ Logger = (*DefaultLogger)(nil)
