package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/triage-ai/palisade/services/integration_engine"

// Publisher emits tool-executed events and tracing spans.
type Publisher struct {
	writer EventWriter
	tracer trace.Tracer
}

// NewPublisher creates a Publisher. A nil tracer falls back to the global provider.
func NewPublisher(writer EventWriter, tracer trace.Tracer) *Publisher {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Publisher{writer: writer, tracer: tracer}
}

// ToolExecuted hands the event to the writer without waiting on it.
func (p *Publisher) ToolExecuted(event *ToolExecutedEvent) {
	if p.writer == nil || event == nil {
		return
	}
	p.writer.Write(event)
}

// StartSpan opens a span named name carrying attrs.
func (p *Publisher) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
