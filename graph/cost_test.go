package graph

import (
	"context"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCostTracker_RecordAndTotals(t *testing.T) {
	ct := NewCostTracker("run-1", "")

	if err := ct.RecordLLMCall("ask", "gpt-4o-mini", 1_000_000, 500_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ct.RecordLLMCall("ask", "gpt-4o", 100_000, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1M in * 0.15 + 0.5M out * 0.60 = 0.45; 0.1M in * 2.50 = 0.25
	if got := ct.TotalCost(); !almostEqual(got, 0.70) {
		t.Errorf("TotalCost = %v, want 0.70", got)
	}

	byModel := ct.CostByModel()
	if !almostEqual(byModel["gpt-4o-mini"], 0.45) {
		t.Errorf("CostByModel[gpt-4o-mini] = %v, want 0.45", byModel["gpt-4o-mini"])
	}
	if !almostEqual(byModel["gpt-4o"], 0.25) {
		t.Errorf("CostByModel[gpt-4o] = %v, want 0.25", byModel["gpt-4o"])
	}

	history := ct.CallHistory()
	if len(history) != 2 {
		t.Fatalf("CallHistory len = %d, want 2", len(history))
	}
	if history[0].NodeID != "ask" || history[0].InputTokens != 1_000_000 {
		t.Errorf("history[0] = %+v", history[0])
	}
}

func TestCostTracker_UnknownModelErrors(t *testing.T) {
	ct := NewCostTracker("run-1", "USD")
	if err := ct.RecordLLMCall("ask", "not-a-model", 100, 100); err == nil {
		t.Fatal("expected error for unknown model")
	}
	if got := ct.TotalCost(); got != 0 {
		t.Errorf("TotalCost = %v, want 0 after rejected call", got)
	}
}

func TestCostTracker_CustomPricingAndDisable(t *testing.T) {
	ct := NewCostTracker("run-1", "USD")
	ct.SetCustomPricing("local-llm", 1.00, 2.00)

	if err := ct.RecordLLMCall("ask", "local-llm", 1_000_000, 1_000_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ct.TotalCost(); !almostEqual(got, 3.00) {
		t.Errorf("TotalCost = %v, want 3.00", got)
	}

	ct.Disable()
	if err := ct.RecordLLMCall("ask", "local-llm", 1_000_000, 0); err != nil {
		t.Fatalf("unexpected error while disabled: %v", err)
	}
	if got := ct.TotalCost(); !almostEqual(got, 3.00) {
		t.Errorf("TotalCost = %v after disabled call, want 3.00", got)
	}
}

func TestAgentNodeDesc_FeedsCostTracker(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		calls    int
	}{
		{
			name:     "int token counts",
			metadata: map[string]any{"model": "gpt-4o-mini", "input_tokens": 1_000_000, "output_tokens": 500_000},
			calls:    1,
		},
		{
			// A state map that has been through a checkpoint round trip
			// carries numbers as float64.
			name:     "float64 token counts",
			metadata: map[string]any{"model": "gpt-4o-mini", "input_tokens": float64(1_000_000), "output_tokens": float64(500_000)},
			calls:    1,
		},
		{
			name:     "no usage metadata",
			metadata: map[string]any{"turn": 1},
			calls:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := NewCostTracker("run-1", "USD")
			a := &fakeAgent{resp: Message{Content: "out", Metadata: tt.metadata}}
			node := &AgentNodeDesc{NodeID: "ask", Agent: a}
			nic := &NodeInvocationContext{StateMap: StateMap{}, Context: NewContext(nil), Costs: ct}

			if _, err := node.Execute(context.Background(), nic); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			history := ct.CallHistory()
			if len(history) != tt.calls {
				t.Fatalf("CallHistory len = %d, want %d", len(history), tt.calls)
			}
			if tt.calls > 0 {
				if history[0].NodeID != "ask" || history[0].Model != "gpt-4o-mini" {
					t.Errorf("history[0] = %+v", history[0])
				}
				if !almostEqual(history[0].Cost, 0.45) {
					t.Errorf("Cost = %v, want 0.45", history[0].Cost)
				}
			}
		})
	}
}

func TestAgentNodeDesc_NilTrackerIsIgnored(t *testing.T) {
	a := &fakeAgent{resp: Message{Content: "out", Metadata: map[string]any{"model": "gpt-4o", "input_tokens": 10, "output_tokens": 10}}}
	node := &AgentNodeDesc{NodeID: "ask", Agent: a}
	nic := &NodeInvocationContext{StateMap: StateMap{}, Context: NewContext(nil)}

	if _, err := node.Execute(context.Background(), nic); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
