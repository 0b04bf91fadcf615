package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartRequestSpan starts the client span covering one downstream call:
// payload fetch, every retry attempt and processing.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, method, function string) (context.Context, trace.Span) {
	spanName := method + " request"
	if function != "" {
		spanName = method + " " + function
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", method),
	)
	if function != "" {
		span.SetAttributes(attribute.String("octail.function", function))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
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

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// AddAttemptEvent marks one retry attempt on the span active in ctx.
func AddAttemptEvent(ctx context.Context, status int, reason string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{attribute.Int("http.response.status_code", status)}
	if reason != "" {
		attrs = append(attrs, attribute.String("octail.reason", reason))
	}
	span.AddEvent("attempt", trace.WithAttributes(attrs...))
}
