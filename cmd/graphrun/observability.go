package main

import (
	"go.opentelemetry.io/otel"

	"github.com/dshills/agentgraph-go/config"
	"github.com/dshills/agentgraph-go/graph"
	"github.com/dshills/agentgraph-go/graph/emit"
)

// engineOptions translates cfg.Metrics/cfg.Tracing into graph.Options. A
// process wanting real span export configures the global TracerProvider
// itself (batcher, exporter, endpoint) before invoking graphrun; this only
// wires the engine up to whatever provider is already registered.
func engineOptions(cfg config.Config) []graph.Option {
	var opts []graph.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, graph.WithMetrics(graph.NewMetrics(nil)))
	}
	if cfg.Tracing.Enabled {
		tracer := otel.Tracer("agentgraph-go")
		opts = append(opts, graph.WithEmitter(emit.NewOTelEmitter(tracer)))
	}
	return opts
}
