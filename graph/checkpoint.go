package graph

import (
	"sort"
	"time"
)

// Checkpoint is a durable snapshot of a run at a point between node
// dispatches. Serialization is the CheckpointStore implementation's
// concern; this package only defines the shape and the save/resume rules.
type Checkpoint struct {
	CheckpointID  string
	RunID         string
	GraphID       string
	CurrentNodeID string
	StateMap      StateMap
	Context       map[string]any
	VisitCount    map[string]int
	Status        Status
	Pending       *HumanInteraction
	CreatedAt     time.Time
	Metadata      map[string]any

	// SchemaVersion identifies the shape of StateMap/Context this
	// checkpoint was written with. Resume compares it against the running
	// graph's expected version and fails closed with
	// CheckpointSchemaDrift on mismatch rather than guessing.
	SchemaVersion int
}

// CurrentSchemaVersion is stamped onto every checkpoint this package
// writes. Bump it whenever a reserved state key changes shape in a way
// that would make an old checkpoint misleading to resume.
const CurrentSchemaVersion = 1

// CheckpointConfig controls when RunWithCheckpoint snapshots state beyond
// the mandatory pre-pause and post-failure points.
type CheckpointConfig struct {
	// SaveEveryNNodes snapshots after every N node dispatches; 0 disables.
	SaveEveryNNodes int

	// SaveEveryNSeconds snapshots on a wall-clock cadence measured from
	// the previous checkpoint; 0 disables.
	SaveEveryNSeconds int

	// MaxCheckpointsPerRun bounds retained history; 0 means unbounded.
	// After each successful save the runner deletes the oldest checkpoints
	// for the run (via ListByRun and Delete) once this is exceeded.
	MaxCheckpointsPerRun int

	// SaveOnError snapshots immediately before a node failure is
	// returned to the caller, so a failed run can be inspected or
	// resumed from its last-good state.
	SaveOnError bool
}

// DefaultCheckpointConfig checkpoints around pauses and failures without
// adding periodic overhead unless the caller asks for it.
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{SaveOnError: true}
}

// shouldCheckpoint reports whether a snapshot should be taken after
// dispatching the nodesSinceLastSave'th node, sinceLastSave wall-clock
// duration after the previous checkpoint.
func shouldCheckpoint(cfg CheckpointConfig, nodesSinceLastSave int, sinceLastSave time.Duration) bool {
	if cfg.SaveEveryNNodes > 0 && nodesSinceLastSave >= cfg.SaveEveryNNodes {
		return true
	}
	if cfg.SaveEveryNSeconds > 0 && sinceLastSave >= time.Duration(cfg.SaveEveryNSeconds)*time.Second {
		return true
	}
	return false
}

// CheckpointStore is the durable-storage contract the runner depends on.
// Exactly six operations: a store is never required to implement more,
// and the runner never calls anything beyond these.
type CheckpointStore interface {
	Save(cp Checkpoint) error
	Load(checkpointID string) (Checkpoint, error)
	ListByRun(runID string) ([]Checkpoint, error)
	ListByGraph(graphID string) ([]Checkpoint, error)
	Delete(checkpointID string) error
	DeleteByRun(runID string) error
}

func newCheckpoint(rs *RunState, graphID string, pending *HumanInteraction, metadata map[string]any, now time.Time) Checkpoint {
	return Checkpoint{
		CheckpointID:  rs.RunID + "_" + now.UTC().Format("20060102T150405.000000000"),
		RunID:         rs.RunID,
		GraphID:       graphID,
		CurrentNodeID: rs.CurrentNodeID,
		StateMap:      rs.StateMap.Clone(),
		Context:       rs.Context.Snapshot(),
		VisitCount:    cloneVisitCount(rs.VisitCount),
		Status:        rs.Status,
		Pending:       pending,
		CreatedAt:     now,
		Metadata:      metadata,
		SchemaVersion: CurrentSchemaVersion,
	}
}

// enforceMaxCheckpoints deletes the oldest checkpoints for runID once the
// retained count exceeds max.
// Implemented generically over the CheckpointStore interface so every
// backend (in-memory, SQLite, MySQL) gets the same eviction rule without
// needing a store-specific method.
func enforceMaxCheckpoints(store CheckpointStore, runID string, max int) error {
	if max <= 0 {
		return nil
	}
	cps, err := store.ListByRun(runID)
	if err != nil {
		return err
	}
	if len(cps) <= max {
		return nil
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i].CreatedAt.Before(cps[j].CreatedAt) })
	for _, cp := range cps[:len(cps)-max] {
		if err := store.Delete(cp.CheckpointID); err != nil {
			return err
		}
	}
	return nil
}

func cloneVisitCount(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// restoreRunState rebuilds a RunState from a checkpoint, validating that
// its schema version matches what this build of the graph expects.
func restoreRunState(cp Checkpoint) (*RunState, error) {
	if cp.SchemaVersion != CurrentSchemaVersion {
		return nil, newErrorCtx(KindCheckpointSchemaDrift, cp.CurrentNodeID,
			"checkpoint schema version does not match the running graph", nil,
			map[string]any{"checkpointVersion": cp.SchemaVersion, "expectedVersion": CurrentSchemaVersion})
	}
	return &RunState{
		RunID:         cp.RunID,
		GraphID:       cp.GraphID,
		StateMap:      cp.StateMap.Clone(),
		Context:       NewContext(cp.Context),
		CurrentNodeID: cp.CurrentNodeID,
		Status:        cp.Status,
		VisitCount:    cloneVisitCount(cp.VisitCount),
	}, nil
}
