// Package tool provides Tool and ToolResolver implementations for tool
// nodes: a mock for tests, an HTTP-backed tool, and the resolver
// strategies (static, registry, selector, fallback chain).
package tool

import (
	"context"
	"sync"

	"github.com/dshills/agentgraph-go/graph"
)

// Mock is a test implementation of graph.Tool: configurable name,
// response sequence, error injection, and call history.
type Mock struct {
	ToolName  string
	Responses []graph.ToolResult
	Err       error
	Calls     []map[string]any

	mu        sync.Mutex
	callIndex int
}

func (m *Mock) Name() string { return m.ToolName }

func (m *Mock) Execute(ctx context.Context, parameters map[string]any, _ graph.Context) (graph.ToolResult, error) {
	if ctx.Err() != nil {
		return graph.ToolResult{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, parameters)

	if m.Err != nil {
		return graph.ToolResult{}, m.Err
	}
	if len(m.Responses) == 0 {
		return graph.ToolResult{Success: true}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Static resolves to a single fixed Tool regardless of invocation
// context, the simplest of the four resolution strategies.
type Static struct {
	Tool graph.Tool
}

func (s Static) Resolve(context.Context, *graph.NodeInvocationContext) (graph.Tool, error) {
	return s.Tool, nil
}
