package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dshills/agentgraph-go/graph"
)

// row is the flat, JSON-friendly shape a checkpoint is serialized to
// before hitting a SQL driver. Every container-valued field (StateMap,
// Context, VisitCount, Pending, Metadata) is stored as a JSON TEXT column
// rather than collapsed to a string representation, so container
// structure survives a round trip.
type row struct {
	CheckpointID  string
	RunID         string
	GraphID       string
	CurrentNodeID string
	StateMap      []byte
	Context       []byte
	VisitCount    []byte
	Status        string
	Pending       []byte // nil when no pending interaction
	Metadata      []byte
	SchemaVersion int
	CreatedAt     time.Time
}

func encodeCheckpoint(cp graph.Checkpoint) (row, error) {
	stateJSON, err := json.Marshal(cp.StateMap)
	if err != nil {
		return row{}, fmt.Errorf("store: marshal state map: %w", err)
	}
	ctxJSON, err := json.Marshal(cp.Context)
	if err != nil {
		return row{}, fmt.Errorf("store: marshal context: %w", err)
	}
	visitJSON, err := json.Marshal(cp.VisitCount)
	if err != nil {
		return row{}, fmt.Errorf("store: marshal visit count: %w", err)
	}
	var pendingJSON []byte
	if cp.Pending != nil {
		pendingJSON, err = json.Marshal(cp.Pending)
		if err != nil {
			return row{}, fmt.Errorf("store: marshal pending interaction: %w", err)
		}
	}
	metaJSON, err := json.Marshal(cp.Metadata)
	if err != nil {
		return row{}, fmt.Errorf("store: marshal metadata: %w", err)
	}

	return row{
		CheckpointID:  cp.CheckpointID,
		RunID:         cp.RunID,
		GraphID:       cp.GraphID,
		CurrentNodeID: cp.CurrentNodeID,
		StateMap:      stateJSON,
		Context:       ctxJSON,
		VisitCount:    visitJSON,
		Status:        string(cp.Status),
		Pending:       pendingJSON,
		Metadata:      metaJSON,
		SchemaVersion: cp.SchemaVersion,
		CreatedAt:     cp.CreatedAt,
	}, nil
}

func decodeCheckpoint(r row) (graph.Checkpoint, error) {
	cp := graph.Checkpoint{
		CheckpointID:  r.CheckpointID,
		RunID:         r.RunID,
		GraphID:       r.GraphID,
		CurrentNodeID: r.CurrentNodeID,
		Status:        graph.Status(r.Status),
		SchemaVersion: r.SchemaVersion,
		CreatedAt:     r.CreatedAt,
	}
	if err := json.Unmarshal(r.StateMap, &cp.StateMap); err != nil {
		return graph.Checkpoint{}, fmt.Errorf("store: unmarshal state map: %w", err)
	}
	if err := json.Unmarshal(r.Context, &cp.Context); err != nil {
		return graph.Checkpoint{}, fmt.Errorf("store: unmarshal context: %w", err)
	}
	if err := json.Unmarshal(r.VisitCount, &cp.VisitCount); err != nil {
		return graph.Checkpoint{}, fmt.Errorf("store: unmarshal visit count: %w", err)
	}
	if len(r.Pending) > 0 {
		var pending graph.HumanInteraction
		if err := json.Unmarshal(r.Pending, &pending); err != nil {
			return graph.Checkpoint{}, fmt.Errorf("store: unmarshal pending interaction: %w", err)
		}
		cp.Pending = &pending
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &cp.Metadata); err != nil {
			return graph.Checkpoint{}, fmt.Errorf("store: unmarshal metadata: %w", err)
		}
	}
	return cp, nil
}
