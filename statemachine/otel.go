package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/amp-fsm/statemachine"

// startPostSpan creates the span covering a single Post call.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startPostSpan(ctx context.Context, machine, from, reason string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.post")
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("from_state", from),
		attribute.String("reason", reason),
	)

	return ctx, span
}

// startOverrideSpan creates the span covering an OverrideState call.
//
//nolint:spancheck // Span lifecycle managed by caller
func startOverrideSpan(ctx context.Context, machine, from, to string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.override")
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("from_state", from),
		attribute.String("to_state", to),
	)

	return ctx, span
}

// startActionSpan creates a child span for one enter or leave action.
//
//nolint:spancheck // Span lifecycle managed by caller
func startActionSpan(ctx context.Context, machine string, phase Phase, action string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "action."+action)
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("phase", string(phase)),
		attribute.String("action", action),
	)

	return ctx, span
}

// endSpan records the outcome and ends the span.
func endSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}
