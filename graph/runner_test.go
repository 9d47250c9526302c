package graph_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/agentgraph-go/graph"
	"github.com/dshills/agentgraph-go/graph/agent"
	"github.com/dshills/agentgraph-go/graph/store"
	"github.com/dshills/agentgraph-go/graph/tool"
)

func outputNode(id string) *graph.OutputNodeDesc {
	return &graph.OutputNodeDesc{NodeID: id}
}

func writerNode(id, suffix string) *graph.CustomNodeDesc {
	return &graph.CustomNodeDesc{NodeID: id, Step: func(_ context.Context, nic *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		prev, _ := nic.StateMap[graph.KeyPrevious].(string)
		result := prev + suffix
		nic.StateMap[id] = result
		nic.StateMap[graph.KeyPrevious] = result
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: result}, nil
	}}
}

// TestRun_LinearChain is scenario S1.
func TestRun_LinearChain(t *testing.T) {
	a := &graph.CustomNodeDesc{NodeID: "A", Step: func(_ context.Context, nic *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		nic.StateMap[graph.KeyPrevious] = "x"
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "x"}, nil
	}}
	b := writerNode("B", " y")
	c := writerNode("C", " z")

	g, err := graph.NewGraph("g1", "A", []graph.Node{a, b, c}, []graph.Edge{
		{From: "A", To: "B"},
		{From: "B", To: "C"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	e := graph.NewEngine(g)
	report := e.Run(context.Background(), graph.StateMap{})

	if report.Status != graph.StatusCompleted {
		t.Fatalf("Status = %v, want COMPLETED (err=%v)", report.Status, report.Error)
	}
	if report.Result != "x y z" {
		t.Errorf("Result = %v, want %q", report.Result, "x y z")
	}
	if len(report.NodeReports) != 3 {
		t.Fatalf("expected 3 node reports, got %d", len(report.NodeReports))
	}
	for i, id := range []string{"A", "B", "C"} {
		if report.NodeReports[i].NodeID != id || report.NodeReports[i].Status != graph.NodeSuccess {
			t.Errorf("report[%d] = %+v, want node %q success", i, report.NodeReports[i], id)
		}
	}
}

// TestRun_ParallelSumMerge is scenario S2.
func TestRun_ParallelSumMerge(t *testing.T) {
	branch := func(id string, value string) *graph.CustomNodeDesc {
		return &graph.CustomNodeDesc{NodeID: id, Step: func(_ context.Context, nic *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
			return graph.NodeOutcome{Status: graph.NodeSuccess, Result: value}, nil
		}}
	}
	p := &graph.ParallelNodeDesc{
		NodeID: "P",
		Branches: map[string]graph.Node{
			"a": branch("a", "10"),
			"b": branch("b", "20"),
			"c": branch("c", "30"),
		},
		BranchOrder: []string{"a", "b", "c"},
		FailFast:    true,
	}
	merge := &graph.MergeNodeDesc{NodeID: "M", ParallelNodeID: "P", Merger: func(results map[string]any) any {
		var sum float64
		for _, v := range results {
			s, _ := v.(string)
			switch s {
			case "10":
				sum += 10
			case "20":
				sum += 20
			case "30":
				sum += 30
			}
		}
		return sum
	}}
	out := outputNode("O")

	g, err := graph.NewGraph("g2", "P", []graph.Node{p, merge, out}, []graph.Edge{
		{From: "P", To: "M"},
		{From: "M", To: "O"},
	}, func(sm graph.StateMap) any { return sm["M"] })
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	e := graph.NewEngine(g)
	start := time.Now()
	report := e.Run(context.Background(), graph.StateMap{})
	elapsed := time.Since(start)

	if report.Status != graph.StatusCompleted {
		t.Fatalf("Status = %v, want COMPLETED (err=%v)", report.Status, report.Error)
	}
	if report.Result != 60.0 {
		t.Errorf("Result = %v, want 60", report.Result)
	}
	if elapsed > 2*time.Second {
		t.Errorf("parallel branches should run concurrently, took %v", elapsed)
	}
}

// TestRun_FailFastCancelsSiblings is scenario S3 (fail_fast=true branch).
func TestRun_FailFastCancelsSiblings(t *testing.T) {
	ok := &graph.CustomNodeDesc{NodeID: "a", Step: func(_ context.Context, _ *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "ok"}, nil
	}}
	failing := &graph.CustomNodeDesc{NodeID: "b", Step: func(_ context.Context, _ *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		return graph.NodeOutcome{}, errors.New("branch b exploded")
	}}
	third := &graph.CustomNodeDesc{NodeID: "c", Step: func(_ context.Context, _ *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "ok"}, nil
	}}
	p := &graph.ParallelNodeDesc{
		NodeID:      "P",
		Branches:    map[string]graph.Node{"a": ok, "b": failing, "c": third},
		BranchOrder: []string{"a", "b", "c"},
		FailFast:    true,
	}

	g, err := graph.NewGraph("g3", "P", []graph.Node{p}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	e := graph.NewEngine(g)
	report := e.Run(context.Background(), graph.StateMap{})

	if report.Status != graph.StatusFailed {
		t.Fatalf("Status = %v, want FAILED", report.Status)
	}
}

// TestRun_FailFastFalseSucceedsWithPartialResults is scenario S3
// (fail_fast=false branch).
func TestRun_FailFastFalseSucceedsWithPartialResults(t *testing.T) {
	ok := &graph.CustomNodeDesc{NodeID: "a", Step: func(_ context.Context, _ *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "ok"}, nil
	}}
	failing := &graph.CustomNodeDesc{NodeID: "b", Step: func(_ context.Context, _ *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		return graph.NodeOutcome{}, errors.New("branch b exploded")
	}}
	p := &graph.ParallelNodeDesc{
		NodeID:      "P",
		Branches:    map[string]graph.Node{"a": ok, "b": failing},
		BranchOrder: []string{"a", "b"},
		FailFast:    false,
	}
	out := outputNode("O")
	g, err := graph.NewGraph("g3b", "P", []graph.Node{p, out}, []graph.Edge{{From: "P", To: "O"}},
		func(sm graph.StateMap) any { return sm["P"] })
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	e := graph.NewEngine(g)
	report := e.Run(context.Background(), graph.StateMap{})

	if report.Status != graph.StatusCompleted {
		t.Fatalf("Status = %v, want COMPLETED (err=%v)", report.Status, report.Error)
	}
	collected, ok2 := report.Result.(map[string]any)
	if !ok2 {
		t.Fatalf("expected collected results map, got %T", report.Result)
	}
	if _, present := collected["b"]; present {
		t.Error("failed branch b must be omitted from the merged result")
	}
	if collected["a"] != "ok" {
		t.Errorf("expected branch a result present, got %+v", collected)
	}
}

// TestRunWithCheckpoint_SaveEveryNNodesAndResume is scenario S4.
func TestRunWithCheckpoint_SaveEveryNNodesAndResume(t *testing.T) {
	const total = 20
	const failAt = 12

	nodes := make([]graph.Node, 0, total)
	edges := make([]graph.Edge, 0, total-1)
	for i := 1; i <= total; i++ {
		id := nodeName(i)
		idx := i
		nodes = append(nodes, &graph.CustomNodeDesc{NodeID: id, Step: func(_ context.Context, nic *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
			if idx == failAt {
				return graph.NodeOutcome{}, errors.New("forced failure")
			}
			nic.StateMap[graph.KeyPrevious] = id
			return graph.NodeOutcome{Status: graph.NodeSuccess, Result: id}, nil
		}})
		if i > 1 {
			edges = append(edges, graph.Edge{From: nodeName(i - 1), To: id})
		}
	}

	g, err := graph.NewGraph("g4", nodeName(1), nodes, edges, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	st := store.NewMemory()
	cfg := graph.CheckpointConfig{SaveEveryNNodes: 5, SaveOnError: true}
	e := graph.NewEngine(g, graph.WithCheckpointConfig(cfg))

	report := e.RunWithCheckpoint(context.Background(), graph.StateMap{}, st, cfg)
	if report.Status != graph.StatusFailed {
		t.Fatalf("Status = %v, want FAILED (err=%v)", report.Status, report.Error)
	}

	checkpoints, err := st.ListByRun(report.RunID)
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	gotNodes := map[string]bool{}
	for _, cp := range checkpoints {
		gotNodes[cp.CurrentNodeID] = true
	}
	for _, want := range []string{nodeName(5), nodeName(10), nodeName(12)} {
		if !gotNodes[want] {
			t.Errorf("expected a checkpoint at %s, got checkpoints at %v", want, gotNodes)
		}
	}

	// Resume from the most recent checkpoint: nodes 1-12 must not re-run.
	resumeReport := e.Resume(context.Background(), report.CheckpointID, st)
	for _, nr := range resumeReport.NodeReports {
		for i := 1; i <= failAt; i++ {
			if nr.NodeID == nodeName(i) {
				t.Errorf("node %s was re-executed after resume", nr.NodeID)
			}
		}
	}
	if resumeReport.Status != graph.StatusCompleted {
		t.Fatalf("resumed run Status = %v, want COMPLETED (err=%v)", resumeReport.Status, resumeReport.Error)
	}
}

func nodeName(i int) string {
	return "n" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := ""
	for i > 0 {
		digits = string(rune('0'+i%10)) + digits
		i /= 10
	}
	return digits
}

// TestRunWithCheckpoint_HITLPauseResumeRouting is scenario S5.
func TestRunWithCheckpoint_HITLPauseResumeRouting(t *testing.T) {
	build := func() *graph.Graph {
		draft := &graph.CustomNodeDesc{NodeID: "draft", Step: func(_ context.Context, nic *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
			nic.StateMap[graph.KeyPrevious] = "draft text"
			return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "draft text"}, nil
		}}
		review := &graph.HumanNodeDesc{
			NodeID: "review",
			Prompt: "Please review the draft",
			Options: []graph.InteractionOption{
				{ID: "approve", Label: "Approve"},
				{ID: "reject", Label: "Reject"},
			},
		}
		decide := &graph.DecisionNodeDesc{NodeID: "decide", Branches: []graph.Branch{
			{Name: "approved", Target: "publish", Predicate: func(result string, _ graph.StateMap) bool { return result == "approve" }},
			{Name: "rejected", Target: "rewrite", DefaultTrue: true},
		}}
		publish := outputNode("publish")
		rewrite := outputNode("rewrite")

		g, err := graph.NewGraph("g5", "draft", []graph.Node{draft, review, decide, publish, rewrite}, []graph.Edge{
			{From: "draft", To: "review"},
			{From: "review", To: "decide"},
			{From: "decide", To: "publish", Predicate: func(in graph.PredicateInput) bool {
				sb, _ := in.StateMap[graph.KeySelectedBranch].(string)
				return sb == "publish"
			}},
			{From: "decide", To: "rewrite", Predicate: func(in graph.PredicateInput) bool {
				sb, _ := in.StateMap[graph.KeySelectedBranch].(string)
				return sb == "rewrite"
			}},
		}, nil)
		if err != nil {
			t.Fatalf("unexpected build error: %v", err)
		}
		return g
	}

	t.Run("approve completes via publish", func(t *testing.T) {
		g := build()
		st := store.NewMemory()
		e := graph.NewEngine(g)

		report := e.RunWithCheckpoint(context.Background(), graph.StateMap{}, st, graph.DefaultCheckpointConfig())
		if report.Status != graph.StatusWaitingForHuman {
			t.Fatalf("Status = %v, want WAITING_FOR_HUMAN (err=%v)", report.Status, report.Error)
		}
		if report.CheckpointID == "" {
			t.Fatal("expected a checkpointId on pause")
		}

		pending, err := graph.GetPendingInteractions(report.CheckpointID, st)
		if err != nil || len(pending) != 1 {
			t.Fatalf("GetPendingInteractions: %v, %v", pending, err)
		}
		if pending[0].Prompt != "Please review the draft" {
			t.Errorf("Prompt = %q", pending[0].Prompt)
		}
		firstToolCallID := pending[0].ToolCallID

		resumed := e.ResumeWithHumanResponse(context.Background(), report.CheckpointID, graph.HumanResponse{
			NodeID: "review", ToolCallID: firstToolCallID, Canonical: "approve",
		}, st)
		if resumed.Status != graph.StatusCompleted {
			t.Fatalf("Status = %v, want COMPLETED (err=%v)", resumed.Status, resumed.Error)
		}
		foundPublish := false
		for _, nr := range resumed.NodeReports {
			if nr.NodeID == "publish" {
				foundPublish = true
			}
			if nr.NodeID == "rewrite" {
				t.Error("rewrite should not have run on the approve path")
			}
		}
		if !foundPublish {
			t.Error("expected the publish node to run")
		}

		// Property 6: completed run cleans up its checkpoint history.
		remaining, err := st.ListByRun(resumed.RunID)
		if err != nil {
			t.Fatalf("ListByRun: %v", err)
		}
		if len(remaining) != 0 {
			t.Errorf("expected checkpoint history purged after completion, got %d remaining", len(remaining))
		}
	})

	t.Run("reject completes via rewrite", func(t *testing.T) {
		g := build()
		st := store.NewMemory()
		e := graph.NewEngine(g)

		report := e.RunWithCheckpoint(context.Background(), graph.StateMap{}, st, graph.DefaultCheckpointConfig())
		resumed := e.ResumeWithHumanResponse(context.Background(), report.CheckpointID, graph.HumanResponse{
			NodeID: "review", ToolCallID: "hitl_" + report.RunID + "_review", Canonical: "reject",
		}, st)
		if resumed.Status != graph.StatusCompleted {
			t.Fatalf("Status = %v, want COMPLETED (err=%v)", resumed.Status, resumed.Error)
		}
		foundRewrite := false
		for _, nr := range resumed.NodeReports {
			if nr.NodeID == "rewrite" {
				foundRewrite = true
			}
			if nr.NodeID == "publish" {
				t.Error("publish should not have run on the reject path")
			}
		}
		if !foundRewrite {
			t.Error("expected the rewrite node to run")
		}
	})

	t.Run("pause identity is derived from run and node ids", func(t *testing.T) {
		g := build()
		st := store.NewMemory()
		e := graph.NewEngine(g)

		r1 := e.RunWithCheckpoint(context.Background(), graph.StateMap{}, st, graph.DefaultCheckpointConfig())
		p1, _ := graph.GetPendingInteractions(r1.CheckpointID, st)

		r2 := e.RunWithCheckpoint(context.Background(), graph.StateMap{}, st, graph.DefaultCheckpointConfig())
		p2, _ := graph.GetPendingInteractions(r2.CheckpointID, st)

		if p1[0].ToolCallID == p2[0].ToolCallID {
			t.Error("different runs must not share a toolCallId (it's derived from runId+nodeId)")
		}
		want := "hitl_" + r1.RunID + "_review"
		if p1[0].ToolCallID != want {
			t.Errorf("ToolCallID = %q, want %q", p1[0].ToolCallID, want)
		}
	})
}

// TestRunWithCheckpoint_DynamicPromptSurvivesResume is scenario S6.
func TestRunWithCheckpoint_DynamicPromptSurvivesResume(t *testing.T) {
	writeMenu := &graph.CustomNodeDesc{NodeID: "A", Step: func(_ context.Context, nic *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		nic.StateMap["menu_text"] = "1. X\n2. Y"
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "ok"}, nil
	}}
	human := &graph.HumanNodeDesc{NodeID: "B", PromptKey: "menu_text", AllowFreeText: true}

	g, err := graph.NewGraph("g6", "A", []graph.Node{writeMenu, human}, []graph.Edge{{From: "A", To: "B"}}, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	st := store.NewMemory()
	e := graph.NewEngine(g)

	report := e.RunWithCheckpoint(context.Background(), graph.StateMap{}, st, graph.DefaultCheckpointConfig())
	if report.Status != graph.StatusWaitingForHuman {
		t.Fatalf("Status = %v, want WAITING_FOR_HUMAN (err=%v)", report.Status, report.Error)
	}
	pending, err := graph.GetPendingInteractions(report.CheckpointID, st)
	if err != nil || len(pending) != 1 {
		t.Fatalf("GetPendingInteractions: %v, %v", pending, err)
	}
	if pending[0].Prompt != "1. X\n2. Y" {
		t.Fatalf("Prompt = %q, want the dynamic menu text", pending[0].Prompt)
	}

	// Reload from the store (simulating a fresh process) and confirm the
	// prompt is unchanged after the snapshot/load round trip.
	reloaded, err := st.Load(report.CheckpointID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Pending.Prompt != "1. X\n2. Y" {
		t.Errorf("Prompt after reload = %q, want unchanged", reloaded.Pending.Prompt)
	}
}

func TestRun_NoOutgoingEdgeMatchedFails(t *testing.T) {
	a := &graph.CustomNodeDesc{NodeID: "A", Step: func(_ context.Context, _ *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "x"}, nil
	}}
	b := outputNode("B")
	g, err := graph.NewGraph("g7", "A", []graph.Node{a, b}, []graph.Edge{
		{From: "A", To: "B", Predicate: func(graph.PredicateInput) bool { return false }},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	e := graph.NewEngine(g)
	report := e.Run(context.Background(), graph.StateMap{})
	if report.Status != graph.StatusFailed {
		t.Fatalf("Status = %v, want FAILED", report.Status)
	}
	if !graph.IsKind(report.Error, graph.KindNoEdgeMatched) {
		t.Fatalf("expected NoEdgeMatched, got %v", report.Error)
	}
}

func TestRun_TerminalNodeWithNoEdgesCompletes(t *testing.T) {
	a := outputNode("A")
	g, err := graph.NewGraph("g8", "A", []graph.Node{a}, nil, func(sm graph.StateMap) any { return "done" })
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	e := graph.NewEngine(g)
	report := e.Run(context.Background(), graph.StateMap{})
	if report.Status != graph.StatusCompleted || report.Result != "done" {
		t.Fatalf("report = %+v", report)
	}
}

func TestRun_CancellationStopsTraversal(t *testing.T) {
	started := make(chan struct{})
	blocking := &graph.CustomNodeDesc{NodeID: "A", Step: func(ctx context.Context, _ *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		close(started)
		<-ctx.Done()
		return graph.NodeOutcome{}, ctx.Err()
	}}
	next := outputNode("B")
	g, err := graph.NewGraph("g9", "A", []graph.Node{blocking, next}, []graph.Edge{{From: "A", To: "B"}}, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	e := graph.NewEngine(g)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan graph.RunReport, 1)
	go func() { done <- e.Run(ctx, graph.StateMap{}) }()

	<-started
	cancel()

	report := <-done
	if report.Status != graph.StatusCancelled && report.Status != graph.StatusFailed {
		t.Fatalf("Status = %v, want CANCELLED (or FAILED carrying CancelledError)", report.Status)
	}
}

func TestRun_VisitCapPreventsRunawayLoops(t *testing.T) {
	loop := &graph.CustomNodeDesc{NodeID: "loop", Step: func(_ context.Context, _ *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "again"}, nil
	}}
	g, err := graph.NewGraph("g10", "loop", []graph.Node{loop}, []graph.Edge{{From: "loop", To: "loop"}}, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	e := graph.NewEngine(g, graph.WithMaxVisitsPerNode(5))
	report := e.Run(context.Background(), graph.StateMap{})
	if report.Status != graph.StatusFailed {
		t.Fatalf("Status = %v, want FAILED once the visit cap is exceeded", report.Status)
	}
}

func TestRun_DeterministicRoutingAcrossRepeatedRuns(t *testing.T) {
	a := &graph.CustomNodeDesc{NodeID: "A", Step: func(_ context.Context, nic *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		nic.StateMap[graph.KeyPrevious] = "go-left"
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "go-left"}, nil
	}}
	left := outputNode("left")
	right := outputNode("right")
	g, err := graph.NewGraph("g11", "A", []graph.Node{a, left, right}, []graph.Edge{
		{From: "A", To: "left", Priority: 0, Predicate: func(in graph.PredicateInput) bool { return in.Result == "go-left" }},
		{From: "A", To: "right", Priority: 1},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	var sequences [][]string
	for i := 0; i < 5; i++ {
		e := graph.NewEngine(g)
		report := e.Run(context.Background(), graph.StateMap{})
		var seq []string
		for _, nr := range report.NodeReports {
			seq = append(seq, nr.NodeID)
		}
		sequences = append(sequences, seq)
	}
	for i := 1; i < len(sequences); i++ {
		if len(sequences[i]) != len(sequences[0]) {
			t.Fatalf("run %d produced a different length sequence: %v vs %v", i, sequences[i], sequences[0])
		}
		for j := range sequences[0] {
			if sequences[i][j] != sequences[0][j] {
				t.Fatalf("run %d diverged at step %d: %v vs %v", i, j, sequences[i], sequences[0])
			}
		}
	}
}

func TestEngine_WithAgentAndToolCollaborators(t *testing.T) {
	mockAgent := &agent.Mock{Responses: []graph.Message{{Content: "analyzed", Sender: "mock"}}}
	mockTool := &tool.Mock{ToolName: "search", Responses: []graph.ToolResult{{Success: true, Result: "found it"}}}

	agentNode := &graph.AgentNodeDesc{NodeID: "ask", Agent: mockAgent}
	toolNode := &graph.ToolNodeDesc{NodeID: "search", Resolver: tool.Static{Tool: mockTool}, Mapper: func(state graph.StateMap) map[string]any {
		return map[string]any{"query": state[graph.KeyPrevious]}
	}}
	out := outputNode("out")

	g, err := graph.NewGraph("g12", "ask", []graph.Node{agentNode, toolNode, out}, []graph.Edge{
		{From: "ask", To: "search"},
		{From: "search", To: "out"},
	}, func(sm graph.StateMap) any { return sm[graph.KeyPrevious] })
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	e := graph.NewEngine(g)
	report := e.Run(context.Background(), graph.StateMap{graph.KeyPrevious: "initial"})

	if report.Status != graph.StatusCompleted {
		t.Fatalf("Status = %v, want COMPLETED (err=%v)", report.Status, report.Error)
	}
	if report.Result != "found it" {
		t.Errorf("Result = %v, want %q", report.Result, "found it")
	}
	if mockAgent.CallCount() != 1 || mockTool.CallCount() != 1 {
		t.Errorf("expected one call each, got agent=%d tool=%d", mockAgent.CallCount(), mockTool.CallCount())
	}
}

func TestRun_ReportsDuration(t *testing.T) {
	slow := &graph.CustomNodeDesc{NodeID: "slow", Step: func(_ context.Context, nic *graph.NodeInvocationContext) (graph.NodeOutcome, error) {
		time.Sleep(10 * time.Millisecond)
		return graph.NodeOutcome{Status: graph.NodeSuccess, Result: "done"}, nil
	}}

	g, err := graph.NewGraph("g13", "slow", []graph.Node{slow}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	report := graph.NewEngine(g).Run(context.Background(), graph.StateMap{})

	if report.Status != graph.StatusCompleted {
		t.Fatalf("Status = %v, want COMPLETED (err=%v)", report.Status, report.Error)
	}
	if report.Duration < 10*time.Millisecond {
		t.Errorf("Duration = %v, want >= 10ms", report.Duration)
	}
}

func TestEngine_CostTrackerFedByAgentNodes(t *testing.T) {
	mockAgent := &agent.Mock{Responses: []graph.Message{
		{Content: "analyzed", Sender: "mock", Metadata: map[string]any{"model": "gpt-4o-mini", "input_tokens": 1_000_000, "output_tokens": 500_000}},
	}}
	agentNode := &graph.AgentNodeDesc{NodeID: "ask", Agent: mockAgent}

	g, err := graph.NewGraph("g14", "ask", []graph.Node{agentNode}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	ct := graph.NewCostTracker("", "USD")
	report := graph.NewEngine(g, graph.WithCostTracker(ct)).Run(context.Background(), graph.StateMap{})

	if report.Status != graph.StatusCompleted {
		t.Fatalf("Status = %v, want COMPLETED (err=%v)", report.Status, report.Error)
	}
	history := ct.CallHistory()
	if len(history) != 1 {
		t.Fatalf("CallHistory len = %d, want 1", len(history))
	}
	if history[0].NodeID != "ask" || history[0].Model != "gpt-4o-mini" || history[0].Cost == 0 {
		t.Errorf("history[0] = %+v", history[0])
	}
}
