package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartRunSpan creates the root span for one import run.
func StartRunSpan(ctx context.Context, runID, date, source string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "import.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.date", date),
			attribute.String("run.source", source),
		),
	)
}

// StartStageSpan creates a child span for one pipeline stage
// (download, extract, normalize, persist, aggregate).
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "import."+stage,
		trace.WithAttributes(attribute.String("import.stage", stage)),
	)
}

// StartGatewaySpan creates a client span for a call to the report gateway.
func StartGatewaySpan(ctx context.Context, op, url string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gateway.op", op),
			attribute.String("gateway.url", url),
		),
	)
}

// InjectHeaders injects the current trace context (traceparent, tracestate)
// into the given HTTP request headers.
func InjectHeaders(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// SetRows records how many rows a stage produced on the current span.
func SetRows(ctx context.Context, rows int) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("import.rows", rows))
}

// SetStatus records an HTTP status code on the current span.
func SetStatus(ctx context.Context, statusCode int) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.status_code", statusCode))
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}
}
