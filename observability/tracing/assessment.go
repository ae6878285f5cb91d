package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AssessmentTracer creates spans around screening and message assessment.
type AssessmentTracer struct {
	tracer trace.Tracer
}

// NewAssessmentTracer creates an AssessmentTracer. If tracer is nil, the
// global tracer provider is used.
func NewAssessmentTracer(tracer trace.Tracer) *AssessmentTracer {
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer("sahara.engine")
	}
	return &AssessmentTracer{tracer: tracer}
}

// Start begins a span for one engine operation. The session id is never
// attached; only the operation name is.
func (a *AssessmentTracer) Start(ctx context.Context, operation string) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, "sahara."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("sahara.operation", operation)),
	)
}

// RecordOutcome annotates span with the assessment result.
func (a *AssessmentTracer) RecordOutcome(span trace.Span, level string, score int, escalated bool, priority string) {
	span.SetAttributes(
		attribute.String("sahara.risk.level", level),
		attribute.Int("sahara.risk.score", score),
		attribute.Bool("sahara.escalated", escalated),
		attribute.String("sahara.priority", priority),
	)
	span.SetStatus(codes.Ok, "")
}

// RecordError records err on span and marks it failed.
func (a *AssessmentTracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
