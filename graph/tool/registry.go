package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/agentgraph-go/graph"
)

// Registry resolves tools by name: the graph.KeyToolName ("tool_name")
// state value when set (tool-node dispatch also writes it), otherwise the
// tool node's NodeID. It satisfies graph.ToolResolver.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]graph.Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]graph.Tool{}}
}

func (r *Registry) Register(t graph.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Resolve(_ context.Context, nic *graph.NodeInvocationContext) (graph.Tool, error) {
	name, _ := nic.StateMap[graph.KeyToolName].(string)
	if name == "" {
		name = nic.NodeID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool registry: no tool registered for %q", name)
	}
	return t, nil
}

// SelectorFunc picks a tool dynamically from the invocation context,
// e.g. routing on a value an upstream agent node wrote to state.
type SelectorFunc func(ctx context.Context, nic *graph.NodeInvocationContext) (graph.Tool, error)

// Selector wraps a caller-supplied SelectorFunc as a graph.ToolResolver.
type Selector struct {
	Select SelectorFunc
}

func (s Selector) Resolve(ctx context.Context, nic *graph.NodeInvocationContext) (graph.Tool, error) {
	return s.Select(ctx, nic)
}

// FallbackChain tries each resolver in order, returning the first
// successful resolution. All resolvers failing returns the last error.
type FallbackChain struct {
	Resolvers []graph.ToolResolver
}

func (f FallbackChain) Resolve(ctx context.Context, nic *graph.NodeInvocationContext) (graph.Tool, error) {
	var lastErr error
	for _, r := range f.Resolvers {
		t, err := r.Resolve(ctx, nic)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("tool fallback chain: no resolvers configured")
	}
	return nil, lastErr
}
