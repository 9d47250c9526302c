package graph

import (
	"context"
	"fmt"
	"sort"
)

// MergePolicy selects how metadata produced by concurrent branches is
// folded back into the run's state map.
type MergePolicy string

const (
	MergeNamespace  MergePolicy = "namespace"
	MergeLastWrite  MergePolicy = "last_write"
	MergeFirstWrite MergePolicy = "first_write"
	MergeCustom     MergePolicy = "custom"
)

// Aggregator names one of the custom per-key aggregation strategies.
type Aggregator string

const (
	AggAverage    Aggregator = "AVERAGE"
	AggSum        Aggregator = "SUM"
	AggMin        Aggregator = "MIN"
	AggMax        Aggregator = "MAX"
	AggVote       Aggregator = "VOTE"
	AggFirst      Aggregator = "FIRST"
	AggLast       Aggregator = "LAST"
	AggConcatList Aggregator = "CONCAT_LIST"
)

// MetadataMerge configures how branch metadata is combined. Aggregators is
// only consulted when Policy == MergeCustom, one entry per metadata key
// that needs non-default handling; keys absent from Aggregators fall back
// to MergeNamespace so custom policies never silently drop data.
type MetadataMerge struct {
	Policy      MergePolicy
	Aggregators map[string]Aggregator
}

// ParallelNodeDesc fans out to its Branches concurrently and collects
// their results into a name-keyed map for a downstream Merge node.
// BranchOrder fixes the declared order used for deterministic tie-breaks
// in LastWrite/FirstWrite and VOTE merges; Branches itself is a map only
// because lookups are by name, not because order is unspecified.
type ParallelNodeDesc struct {
	NodeID      string
	Branches    map[string]Node
	BranchOrder []string
	Merge       MetadataMerge
	FailFast    bool
}

func (n *ParallelNodeDesc) ID() string     { return n.NodeID }
func (n *ParallelNodeDesc) Kind() NodeKind { return KindParallel }

type branchOutcome struct {
	name   string
	output string
	delta  StateMap
	err    error
}

func (n *ParallelNodeDesc) Execute(ctx context.Context, nic *NodeInvocationContext) (NodeOutcome, error) {
	order := n.BranchOrder
	if len(order) == 0 {
		for name := range n.Branches {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan branchOutcome, len(order))
	baseline := nic.StateMap.Clone()

	if nic.Metrics != nil {
		nic.Metrics.SetInflightBranches(nic.RunID, n.NodeID, len(order))
	}

	for _, name := range order {
		node, ok := n.Branches[name]
		if !ok {
			results <- branchOutcome{name: name, err: newError(KindNodeExecutionError, n.NodeID, "unknown branch: "+name, nil)}
			continue
		}
		go func(name string, node Node) {
			branchState := baseline.Clone()
			branchNic := &NodeInvocationContext{
				GraphID:  nic.GraphID,
				RunID:    nic.RunID,
				NodeID:   node.ID(),
				StateMap: branchState,
				Context:  nic.Context,
				Costs:    nic.Costs,
				Metrics:  nic.Metrics,
			}
			outcome, err := node.Execute(branchCtx, branchNic)
			if err != nil {
				if n.FailFast {
					cancel()
				}
				results <- branchOutcome{name: name, err: err}
				return
			}
			results <- branchOutcome{name: name, output: outcome.Result, delta: diffState(baseline, branchState)}
		}(name, node)
	}

	collected := make(map[string]branchOutcome, len(order))
	for i := range order {
		r := <-results
		collected[r.name] = r
		if nic.Metrics != nil {
			nic.Metrics.SetInflightBranches(nic.RunID, n.NodeID, len(order)-i-1)
		}
	}

	var firstErr error
	var firstErrName string
	for _, name := range order {
		r := collected[name]
		if r.err != nil && firstErr == nil {
			firstErr = r.err
			firstErrName = name
		}
	}

	if n.FailFast && firstErr != nil {
		return NodeOutcome{}, newErrorCtx(KindNodeExecutionError, n.NodeID, "branch failed: "+firstErrName, firstErr, map[string]any{"branch": firstErrName})
	}

	succeeded := map[string]any{}
	var succeededOrder []string
	for _, name := range order {
		r := collected[name]
		if r.err == nil {
			succeeded[name] = r.output
			succeededOrder = append(succeededOrder, name)
		}
	}

	if len(succeeded) == 0 {
		return NodeOutcome{}, newError(KindNodeExecutionError, n.NodeID, "all branches failed", firstErr)
	}

	nic.StateMap[n.NodeID] = succeeded

	mergeMetadata(nic.StateMap, n.NodeID, n.Merge, order, collected)

	return NodeOutcome{Status: NodeSuccess}, nil
}

// diffState returns the keys in after that are new or changed relative to
// before — a branch's "metadata" for merge purposes.
func diffState(before, after StateMap) StateMap {
	delta := StateMap{}
	for k, v := range after {
		if bv, ok := before[k]; !ok || fmt.Sprint(bv) != fmt.Sprint(v) {
			delta[k] = v
		}
	}
	return delta
}

func mergeMetadata(dst StateMap, parallelNodeID string, cfg MetadataMerge, order []string, collected map[string]branchOutcome) {
	policy := cfg.Policy
	if policy == "" {
		policy = MergeNamespace
	}

	switch policy {
	case MergeNamespace:
		for _, name := range order {
			r := collected[name]
			if r.err != nil {
				continue
			}
			for k, v := range r.delta {
				dst[fmt.Sprintf("parallel.%s.%s.%s", parallelNodeID, name, k)] = v
			}
		}
	case MergeLastWrite:
		for _, name := range order {
			r := collected[name]
			if r.err != nil {
				continue
			}
			for k, v := range r.delta {
				dst[k] = v
			}
		}
	case MergeFirstWrite:
		for _, name := range order {
			r := collected[name]
			if r.err != nil {
				continue
			}
			for k, v := range r.delta {
				if _, exists := dst[k]; !exists {
					dst[k] = v
				}
			}
		}
	case MergeCustom:
		keys := map[string]bool{}
		for _, name := range order {
			r := collected[name]
			if r.err != nil {
				continue
			}
			for k := range r.delta {
				keys[k] = true
			}
		}
		for key := range keys {
			agg, ok := cfg.Aggregators[key]
			if !ok {
				for _, name := range order {
					r := collected[name]
					if r.err != nil {
						continue
					}
					if v, ok := r.delta[key]; ok {
						dst[fmt.Sprintf("parallel.%s.%s.%s", parallelNodeID, name, key)] = v
					}
				}
				continue
			}
			dst[key] = aggregate(agg, order, collected, key)
		}
	}
}

func aggregate(agg Aggregator, order []string, collected map[string]branchOutcome, key string) any {
	var values []any
	for _, name := range order {
		r := collected[name]
		if r.err != nil {
			continue
		}
		if v, ok := r.delta[key]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil
	}

	toFloat := func(v any) (float64, bool) {
		switch t := v.(type) {
		case float64:
			return t, true
		case int:
			return float64(t), true
		case int64:
			return float64(t), true
		}
		return 0, false
	}

	switch agg {
	case AggSum, AggAverage:
		var sum float64
		var n int
		for _, v := range values {
			if f, ok := toFloat(v); ok {
				sum += f
				n++
			}
		}
		if agg == AggSum {
			return sum
		}
		if n == 0 {
			return 0.0
		}
		return sum / float64(n)
	case AggMin:
		best, ok := toFloat(values[0])
		for _, v := range values[1:] {
			if f, fok := toFloat(v); fok && (!ok || f < best) {
				best, ok = f, true
			}
		}
		return best
	case AggMax:
		best, ok := toFloat(values[0])
		for _, v := range values[1:] {
			if f, fok := toFloat(v); fok && (!ok || f > best) {
				best, ok = f, true
			}
		}
		return best
	case AggFirst:
		return values[0]
	case AggLast:
		return values[len(values)-1]
	case AggConcatList:
		return values
	case AggVote:
		counts := map[string]int{}
		firstSeen := map[string]int{}
		for i, v := range values {
			s := fmt.Sprint(v)
			if _, ok := firstSeen[s]; !ok {
				firstSeen[s] = i
			}
			counts[s]++
		}
		bestKey := ""
		bestCount := -1
		bestIdx := len(values)
		for s, c := range counts {
			if c > bestCount || (c == bestCount && firstSeen[s] < bestIdx) {
				bestKey, bestCount, bestIdx = s, c, firstSeen[s]
			}
		}
		for _, v := range values {
			if fmt.Sprint(v) == bestKey {
				return v
			}
		}
		return nil
	default:
		return values[0]
	}
}

// ---- Merge node -----------------------------------------------------------

// Merger combines a parallel node's collected {branch -> result} mapping
// into the value this merge node produces.
type Merger func(results map[string]any) any

// MergeNodeDesc consumes a named ParallelNodeID's collected mapping.
type MergeNodeDesc struct {
	NodeID         string
	ParallelNodeID string
	Merger         Merger
}

func (n *MergeNodeDesc) ID() string     { return n.NodeID }
func (n *MergeNodeDesc) Kind() NodeKind { return KindMerge }

func (n *MergeNodeDesc) Execute(_ context.Context, nic *NodeInvocationContext) (NodeOutcome, error) {
	raw, ok := nic.StateMap[n.ParallelNodeID]
	if !ok {
		return NodeOutcome{}, newError(KindNodeExecutionError, n.NodeID, "no collected results for parallel node: "+n.ParallelNodeID, nil)
	}
	collected, ok := raw.(map[string]any)
	if !ok {
		return NodeOutcome{}, newError(KindNodeExecutionError, n.NodeID, "collected results for parallel node have unexpected shape", nil)
	}

	var result any
	if n.Merger != nil {
		result = n.Merger(collected)
	} else {
		result = collected
	}

	nic.StateMap[n.NodeID] = result
	text := fmt.Sprintf("%v", result)
	nic.StateMap[KeyPrevious] = text

	return NodeOutcome{Status: NodeSuccess, Result: text}, nil
}
