package graph

import "sort"

// PredicateInput is what an edge predicate sees: the last node's result
// plus the run's state map and context.
type PredicateInput struct {
	Result   string
	StateMap StateMap
	Context  Context
}

// Predicate decides whether an edge should be traversed. Predicates must
// be side-effect-free; the runner never invokes a predicate more than once
// per visit, but it does not assume purity across separate runs.
type Predicate func(in PredicateInput) bool

// AlwaysTrue is the default predicate for an edge with no explicit
// condition.
func AlwaysTrue(PredicateInput) bool { return true }

// Edge is a directed, optionally conditional transition between two nodes.
// Priority controls evaluation order (lowest first); ties break on the
// edge's position within the graph's declared edge list.
type Edge struct {
	From      string
	To        string
	Priority  int
	Predicate Predicate

	// declareIndex is assigned by Graph construction and used only as a
	// stable tie-break; it is not part of the public Edge literal because
	// declaration order is implicit in how edges are appended to a Graph.
	declareIndex int
}

// sortedOutgoing returns edges whose From matches fromNode, ordered by
// Priority then declared order.
func sortedOutgoing(edges []Edge, fromNode string) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.From == fromNode {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].declareIndex < out[j].declareIndex
	})
	return out
}

// evaluateEdges returns the destination of the first matching outgoing
// edge from fromNode, or "" if none match. hasEdges is false only when
// fromNode has no outgoing edges at all (a graph-terminal condition); when
// edges exist but none match, hasEdges is true, matched is false and dest
// is "".
func evaluateEdges(edges []Edge, fromNode string, in PredicateInput) (dest string, hasEdges bool, matched bool) {
	outgoing := sortedOutgoing(edges, fromNode)
	if len(outgoing) == 0 {
		return "", false, false
	}
	for _, e := range outgoing {
		pred := e.Predicate
		if pred == nil {
			pred = AlwaysTrue
		}
		if pred(in) {
			return e.To, true, true
		}
	}
	return "", true, false
}
