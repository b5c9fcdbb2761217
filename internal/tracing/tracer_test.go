package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		tp.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	})
	return exporter
}

func TestInit_StdoutExporter(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{
		ServiceName: "storepulse-test", Version: "1.0.0", Exporter: "stdout", SampleRate: 1.0,
	})
	if err != nil {
		t.Fatalf("Init with stdout exporter: %v", err)
	}
	defer shutdown(context.Background())

	foundTraceparent := false
	for _, f := range otel.GetTextMapPropagator().Fields() {
		if f == "traceparent" {
			foundTraceparent = true
		}
	}
	if !foundTraceparent {
		t.Error("expected W3C propagator to be registered")
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Options{ServiceName: "test", Exporter: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestInit_ZeroSampleRateStillYieldsTraceIDs(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{ServiceName: "test", Exporter: "stdout"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer shutdown(context.Background())

	_, span := Tracer().Start(context.Background(), "unsampled")
	defer span.End()
	if !span.SpanContext().TraceID().IsValid() {
		t.Error("expected valid trace ID even with 0 sample rate")
	}
	if span.SpanContext().IsSampled() {
		t.Error("span should not be sampled at rate 0")
	}
}

func TestTracer_ReturnsNonNil(t *testing.T) {
	var tr trace.Tracer = Tracer()
	if tr == nil {
		t.Fatal("expected non-nil Tracer")
	}
}
