package fetch

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for sift orchestrators.
const defaultTracerName = "sift"

// startSpan opens the per-run span. Returns a nil span when tracing is off;
// endSpan tolerates that.
func (o *Orchestrator[T]) startSpan(req runRequest, invocation string) (context.Context, trace.Span) {
	if o.tracer == nil {
		return o.ctx, nil
	}
	return o.tracer.Start(
		o.ctx,
		"sift.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("sift.invocation_id", invocation),
			attribute.String("sift.origin", req.origin.String()),
			attribute.Bool("sift.skip_cache", req.skipCache),
			attribute.Int("sift.filter_count", len(req.values)),
		),
	)
}

func endSpan(span trace.Span, outcome string, err error, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("sift.outcome", outcome))
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func reasonAttr(reason Reason) attribute.KeyValue {
	return attribute.String("sift.reason", string(reason))
}

func attemptsAttr(attempts int) attribute.KeyValue {
	return attribute.Int("sift.attempts", attempts)
}
