// Package store provides CheckpointStore implementations for the graph
// engine: an in-memory store for tests and short-lived processes, and
// durable SQLite/MySQL backends for production use.
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/dshills/agentgraph-go/graph"
)

// ErrNotFound is returned when a requested checkpoint ID does not exist.
var ErrNotFound = errors.New("store: checkpoint not found")

// Memory is an in-memory graph.CheckpointStore. Data is lost when the
// process exits; intended for tests, development, and single-process runs
// where durability across restarts isn't required.
type Memory struct {
	mu          sync.RWMutex
	checkpoints map[string]graph.Checkpoint
	byRun       map[string][]string // runID -> ordered checkpoint IDs, oldest first
	byGraph     map[string][]string // graphID -> ordered checkpoint IDs, oldest first
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		checkpoints: map[string]graph.Checkpoint{},
		byRun:       map[string][]string{},
		byGraph:     map[string][]string{},
	}
}

func (m *Memory) Save(cp graph.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.checkpoints[cp.CheckpointID]; !exists {
		m.byRun[cp.RunID] = append(m.byRun[cp.RunID], cp.CheckpointID)
		m.byGraph[cp.GraphID] = append(m.byGraph[cp.GraphID], cp.CheckpointID)
	}
	m.checkpoints[cp.CheckpointID] = cp
	return nil
}

func (m *Memory) Load(checkpointID string) (graph.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[checkpointID]
	if !ok {
		return graph.Checkpoint{}, ErrNotFound
	}
	return cp, nil
}

func (m *Memory) ListByRun(runID string) ([]graph.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byRun[runID]
	out := make([]graph.Checkpoint, 0, len(ids))
	for _, id := range ids {
		if cp, ok := m.checkpoints[id]; ok {
			out = append(out, cp)
		}
	}
	return out, nil
}

// ListByGraph returns every checkpoint for graphID, newest first.
func (m *Memory) ListByGraph(graphID string) ([]graph.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byGraph[graphID]
	out := make([]graph.Checkpoint, 0, len(ids))
	for _, id := range ids {
		if cp, ok := m.checkpoints[id]; ok {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Delete(checkpointID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, ok := m.checkpoints[checkpointID]
	if !ok {
		return nil
	}
	delete(m.checkpoints, checkpointID)
	m.byRun[cp.RunID] = removeID(m.byRun[cp.RunID], checkpointID)
	m.byGraph[cp.GraphID] = removeID(m.byGraph[cp.GraphID], checkpointID)
	return nil
}

func (m *Memory) DeleteByRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.byRun[runID] {
		if cp, ok := m.checkpoints[id]; ok {
			delete(m.checkpoints, id)
			m.byGraph[cp.GraphID] = removeID(m.byGraph[cp.GraphID], id)
		}
	}
	delete(m.byRun, runID)
	return nil
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
