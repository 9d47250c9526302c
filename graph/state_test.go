package graph

import "testing"

func TestStateMap_CloneIsIndependent(t *testing.T) {
	original := StateMap{
		"_previous": "hello",
		"nested":    map[string]any{"a": 1.0},
		"list":      []any{"x", "y"},
	}
	clone := original.Clone()

	clone["_previous"] = "changed"
	if original["_previous"] != "hello" {
		t.Fatalf("mutating the clone must not affect the original, got %v", original["_previous"])
	}

	nested, ok := clone["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested map did not survive clone, got %T", clone["nested"])
	}
	nested["a"] = 2.0
	origNested := original["nested"].(map[string]any)
	if origNested["a"] != 1.0 {
		t.Fatalf("clone must deep-copy nested maps, original mutated to %v", origNested["a"])
	}
}

func TestStateMap_ClonePreservesPreviousMessagePointer(t *testing.T) {
	msg := &Message{Content: "hi", Metadata: map[string]any{"k": "v"}}
	original := StateMap{KeyPreviousMessage: msg}

	clone := original.Clone()
	cloned, ok := clone[KeyPreviousMessage].(*Message)
	if !ok {
		t.Fatalf("_previousMessage must round-trip as *Message, got %T", clone[KeyPreviousMessage])
	}
	if cloned.Content != "hi" {
		t.Errorf("Content = %q, want %q", cloned.Content, "hi")
	}
	if cloned == msg {
		t.Error("clone should produce an independent *Message, not share the pointer")
	}
}

func TestStateMap_CloneOfNilIsEmptyNotNil(t *testing.T) {
	var m StateMap
	clone := m.Clone()
	if clone == nil {
		t.Fatal("Clone of a nil StateMap must return a non-nil empty map")
	}
	if len(clone) != 0 {
		t.Errorf("expected empty clone, got %v", clone)
	}
}

func TestNewRunState_SeedsFromInput(t *testing.T) {
	input := StateMap{"seed": "value"}
	rs := NewRunState("run-1", "graph-1", "entry", input, NewContext(nil))

	if rs.Status != StatusRunning {
		t.Errorf("Status = %v, want %v", rs.Status, StatusRunning)
	}
	if rs.CurrentNodeID != "entry" {
		t.Errorf("CurrentNodeID = %q, want %q", rs.CurrentNodeID, "entry")
	}
	if rs.StateMap["seed"] != "value" {
		t.Errorf("seeded state missing, got %v", rs.StateMap)
	}

	// Mutating input after construction must not leak into the run state.
	input["seed"] = "mutated"
	if rs.StateMap["seed"] != "value" {
		t.Error("NewRunState must clone its input, not alias it")
	}
}
