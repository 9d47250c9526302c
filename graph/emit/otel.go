package emit

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/agentgraph-go/graph"
)

// OTelEmitter turns each Event into a point-in-time OpenTelemetry span,
// named after the event type and tagged with run/graph/node identity.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter wraps a tracer obtained from otel.Tracer("agentgraph-go").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) emitOne(e graph.Event) {
	_, span := o.tracer.Start(context.Background(), string(e.Type))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("run_id", e.RunID),
		attribute.String("graph_id", e.GraphID),
	}
	if e.NodeID != "" {
		attrs = append(attrs, attribute.String("node_id", e.NodeID))
	}
	if e.Status != "" {
		attrs = append(attrs, attribute.String("status", string(e.Status)))
	}
	if e.Attempt > 0 {
		attrs = append(attrs, attribute.Int("attempt", e.Attempt))
	}
	if e.Duration > 0 {
		attrs = append(attrs, attribute.Int64("duration_ms", e.Duration.Milliseconds()))
	}
	span.SetAttributes(attrs...)

	if e.Err != nil {
		span.SetStatus(codes.Error, e.Err.Error())
		span.RecordError(e.Err)
	}
}

func (o *OTelEmitter) Emit(e graph.Event) { o.emitOne(e) }

func (o *OTelEmitter) EmitBatch(es []graph.Event) {
	for _, e := range es {
		o.emitOne(e)
	}
}

// Flush force-exports any spans still buffered by the process-wide
// TracerProvider, if it supports that (an SDK provider does, the default
// noop provider doesn't).
func (o *OTelEmitter) Flush() error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(context.Background())
	}
	return nil
}
