package webhooks

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "crmhooks/internal/engine/webhooks"

// Tracer wraps the global OpenTelemetry provider. Without an SDK configured
// the spans are no-ops.
type Tracer struct {
	tracer trace.Tracer
}

func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(tracerName)}
}

func (t *Tracer) StartDelivery(ctx context.Context, webhookID, event, url string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "webhooks.delivery",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("webhook.id", webhookID),
			attribute.String("webhook.event", event),
			attribute.String("url.full", url),
		),
	)
}

func (t *Tracer) EndDelivery(span trace.Span, out Outcome) {
	if t == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("http.response.status_code", out.StatusCode),
		attribute.Int64("webhook.duration_ms", out.DurationMs),
	)
	if !out.Success {
		span.SetStatus(codes.Error, out.ErrorMessage)
	}
	span.End()
}
