package store

import (
	"testing"
	"time"
)

func TestSQLiteContract(t *testing.T) {
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer func() { _ = s.Close() }()

	runContractSuite(t, s)
}

func TestSQLiteSaveIsUpsert(t *testing.T) {
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer func() { _ = s.Close() }()

	cp := contractCheckpoint("cp-1", "run-1", "graph-1", time.Now().UTC().Truncate(time.Microsecond))
	if err := s.Save(cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cp.CurrentNodeID = "publish"
	if err := s.Save(cp); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	got, err := s.Load("cp-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CurrentNodeID != "publish" {
		t.Fatalf("CurrentNodeID = %q, want publish after re-save", got.CurrentNodeID)
	}

	list, err := s.ListByRun("run-1")
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1 (re-save must not duplicate rows)", len(list))
	}
}
