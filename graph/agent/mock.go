// Package agent provides graph.Agent implementations: a scriptable mock for
// tests and provider adapters (graph/agent/anthropic, graph/agent/openai)
// that bridge a multi-turn chat API down to the single-message contract
// agent nodes dispatch against.
package agent

import (
	"context"
	"sync"

	"github.com/dshills/agentgraph-go/graph"
)

// Mock is a test implementation of graph.Agent: a configurable response
// sequence, error injection, and call history, mirroring graph/tool.Mock.
type Mock struct {
	Responses []graph.Message
	Err       error
	Calls     []graph.Message

	mu        sync.Mutex
	callIndex int
}

func (m *Mock) ProcessMessage(ctx context.Context, msg graph.Message) (graph.Message, error) {
	if ctx.Err() != nil {
		return graph.Message{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, msg)

	if m.Err != nil {
		return graph.Message{}, m.Err
	}
	if len(m.Responses) == 0 {
		return graph.Message{Content: msg.Content, Sender: "mock", Type: "agent_output"}, nil
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
