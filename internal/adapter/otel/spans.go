package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "quakefeed"

// StartCommandSpan starts a span for one observer command.
func StartCommandSpan(ctx context.Context, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "command",
		trace.WithAttributes(
			attribute.String("command.action", action),
		),
	)
}

// StartRunSpan starts a span for a push_all run.
func StartRunSpan(ctx context.Context, interval time.Duration) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "push_all_run",
		trace.WithAttributes(
			attribute.Float64("run.interval_seconds", interval.Seconds()),
		),
	)
}

// StartPushEventSpan starts a span for a single-event replay.
func StartPushEventSpan(ctx context.Context, eventID, frames int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "push_event",
		trace.WithAttributes(
			attribute.Int("event.id", eventID),
			attribute.Int("event.frames", frames),
		),
	)
}
