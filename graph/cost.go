package graph

import (
	"fmt"
	"sync"
)

// ModelPricing is the USD cost per 1M input/output tokens for one model.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing covers the models the bundled agent adapters talk to
// (graph/agent/anthropic, graph/agent/openai). Callers with other
// providers should call CostTracker.SetCustomPricing.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":                    {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":               {InputPer1M: 0.15, OutputPer1M: 0.60},
	"claude-sonnet-4-5-20250929": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-opus-20240229":    {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-haiku-20240307":   {InputPer1M: 0.25, OutputPer1M: 1.25},
}

// LLMCall records one priced agent invocation.
type LLMCall struct {
	NodeID       string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// CostTracker accumulates per-run LLM spend. It is intentionally simple:
// static pricing, in-memory totals, no persistence. Attach it to an Engine
// with WithCostTracker; agent-node dispatch then records one call for each
// agent response whose metadata carries model and token counts.
type CostTracker struct {
	mu       sync.Mutex
	runID    string
	currency string
	pricing  map[string]ModelPricing
	calls    []LLMCall
	enabled  bool
}

func NewCostTracker(runID, currency string) *CostTracker {
	if currency == "" {
		currency = "USD"
	}
	pricing := make(map[string]ModelPricing, len(defaultModelPricing))
	for k, v := range defaultModelPricing {
		pricing[k] = v
	}
	return &CostTracker{runID: runID, currency: currency, pricing: pricing, enabled: true}
}

// RecordLLMCall prices and records one call. Unknown models return an
// error rather than silently recording a zero cost, so a missing pricing
// entry doesn't masquerade as a free call.
func (ct *CostTracker) RecordLLMCall(nodeID, model string, inputTokens, outputTokens int) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if !ct.enabled {
		return nil
	}
	price, ok := ct.pricing[model]
	if !ok {
		return fmt.Errorf("cost: no pricing entry for model %q", model)
	}
	cost := float64(inputTokens)/1_000_000*price.InputPer1M + float64(outputTokens)/1_000_000*price.OutputPer1M
	ct.calls = append(ct.calls, LLMCall{NodeID: nodeID, Model: model, InputTokens: inputTokens, OutputTokens: outputTokens, Cost: cost})
	return nil
}

func (ct *CostTracker) TotalCost() float64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	var total float64
	for _, c := range ct.calls {
		total += c.Cost
	}
	return total
}

func (ct *CostTracker) CostByModel() map[string]float64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	out := map[string]float64{}
	for _, c := range ct.calls {
		out[c.Model] += c.Cost
	}
	return out
}

func (ct *CostTracker) CallHistory() []LLMCall {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	out := make([]LLMCall, len(ct.calls))
	copy(out, ct.calls)
	return out
}

func (ct *CostTracker) SetCustomPricing(model string, inputPer1M, outputPer1M float64) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.pricing[model] = ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}
}

func (ct *CostTracker) Disable() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.enabled = false
}

func (ct *CostTracker) Enable() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.enabled = true
}

func (ct *CostTracker) String() string {
	return fmt.Sprintf("CostTracker(run=%s, total=%.4f %s, calls=%d)", ct.runID, ct.TotalCost(), ct.currency, len(ct.calls))
}
