package graph

import (
	"encoding/json"
	"time"
)

// Reserved state-map keys. These must be preserved exactly: the dispatcher
// contract and the HITL protocol both read and write them by name.
const (
	KeyPrevious         = "_previous"
	KeyPreviousMessage  = "_previousMessage"
	KeySelectedBranch   = "_selectedBranch"
	KeyToolLastMetadata = "_tool.lastMetadata"
	KeyToolName         = "tool_name"
	KeyToolSuccess      = "tool_success"
	KeyHITL             = "hitl"
)

// Status is the lifecycle state of a Run.
type Status string

const (
	StatusRunning          Status = "RUNNING"
	StatusWaitingForHuman  Status = "WAITING_FOR_HUMAN"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
	StatusCancelled        Status = "CANCELLED"
)

// NodeStatus is the outcome of a single node's dispatch.
type NodeStatus string

const (
	NodeSuccess NodeStatus = "SUCCESS"
	NodeFailed  NodeStatus = "FAILED"
	NodeSkipped NodeStatus = "SKIPPED"
	NodePaused  NodeStatus = "PAUSED"
)

// StateMap is the mutable per-run blackboard. Keys are node identifiers
// plus the framework-reserved keys above; values may be any JSON-shaped
// data (primitives, strings, slices, nested maps, or the well-known
// structured types defined in this package and in the agent/tool
// packages).
type StateMap map[string]any

// Clone returns a structurally independent copy of the map suitable for
// handing to a parallel branch: siblings must not observe each other's
// writes. The copy is JSON-roundtrip based, which is sufficient for the
// container shapes (maps, slices, structs with exported fields) the state
// map is documented to carry, and keeps the contract identical to what
// checkpoint serialization already requires.
func (m StateMap) Clone() StateMap {
	if m == nil {
		return StateMap{}
	}

	// _previousMessage carries a *Message pointer that dispatch.go type-
	// asserts back out; round-tripping it through json would hand callers
	// a map[string]any instead. Pull it aside and restore the typed value
	// after the generic clone.
	var prevMsg *Message
	hadPrevMsg := false
	if v, ok := m[KeyPreviousMessage]; ok {
		prevMsg, hadPrevMsg = v.(*Message)
	}

	raw, err := json.Marshal(m)
	if err != nil {
		// Fall back to a shallow copy; only reachable for non-serializable
		// values a caller stashed in state against the documented contract.
		cp := make(StateMap, len(m))
		for k, v := range m {
			cp[k] = v
		}
		return cp
	}
	cp := StateMap{}
	_ = json.Unmarshal(raw, &cp)

	if hadPrevMsg {
		msgCopy := *prevMsg
		cp[KeyPreviousMessage] = &msgCopy
	}

	return cp
}

// messageFromState coerces the _previousMessage state value back into a
// typed Message. Durable stores round-trip the state map through JSON, so
// after a resume the value may be a plain map[string]any rather than the
// *Message the dispatchers wrote; both shapes must route identically.
func messageFromState(v any) (*Message, bool) {
	switch m := v.(type) {
	case *Message:
		if m == nil {
			return nil, false
		}
		return m, true
	case map[string]any:
		msg := &Message{}
		msg.Content, _ = m["Content"].(string)
		msg.Sender, _ = m["Sender"].(string)
		msg.Type, _ = m["Type"].(string)
		if md, ok := m["Metadata"].(map[string]any); ok {
			msg.Metadata = md
		}
		return msg, true
	}
	return nil, false
}

// intFromState reads an integer state or metadata value, tolerating the
// float64 shape JSON deserialization produces.
func intFromState(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// NodeReport records one node's visit within a run.
type NodeReport struct {
	NodeID    string
	Status    NodeStatus
	Output    string
	Error     error
	StartedAt time.Time
	EndedAt   time.Time
	Attempt   int
}

// RunState is the mutable execution record threaded through a single run.
// The runner is the sole mutator; it is only ever updated between node
// dispatches.
type RunState struct {
	RunID         string
	GraphID       string
	VisitedNodes  []NodeReport
	StateMap      StateMap
	Context       Context
	CurrentNodeID string
	Status        Status
	VisitCount    map[string]int
}

// NewRunState seeds a fresh run state from an input payload.
func NewRunState(runID, graphID, entryNodeID string, input StateMap, ctx Context) *RunState {
	sm := input.Clone()
	if sm == nil {
		sm = StateMap{}
	}
	return &RunState{
		RunID:         runID,
		GraphID:       graphID,
		StateMap:      sm,
		Context:       ctx,
		CurrentNodeID: entryNodeID,
		Status:        StatusRunning,
		VisitCount:    map[string]int{},
	}
}

// RunReport is the terminal summary of Run/RunWithCheckpoint/Resume calls.
type RunReport struct {
	GraphID      string
	RunID        string
	Status       Status
	Result       any
	Duration     time.Duration
	NodeReports  []NodeReport
	Error        error
	CheckpointID string
}
