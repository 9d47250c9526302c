package graph

import "context"

// NodeKind tags which dispatcher a node descriptor belongs to. Nodes are
// modeled as a tagged variant with a single Execute capability rather than
// a type hierarchy: the Kind is informational (used by validation and by
// observability), not a branch the runner switches on — dispatch is
// polymorphic through the Node interface itself.
type NodeKind string

const (
	KindAgent    NodeKind = "agent"
	KindTool     NodeKind = "tool"
	KindParallel NodeKind = "parallel"
	KindMerge    NodeKind = "merge"
	KindDecision NodeKind = "decision"
	KindHuman    NodeKind = "human"
	KindOutput   NodeKind = "output"
	KindCustom   NodeKind = "custom"
)

// NodeInvocationContext is what every dispatcher receives: graph/run
// identity, a mutable reference to the state map, the read-only run
// context, and (via ctx) the cancellation signal. Costs and Metrics are
// the engine's optional observability hooks, nil when not configured.
type NodeInvocationContext struct {
	GraphID  string
	RunID    string
	NodeID   string
	StateMap StateMap
	Context  Context
	Costs    *CostTracker
	Metrics  *Metrics
}

// NodeOutcome is the result of a single node dispatch, consumed by the
// runner to update state, advance routing, and build the per-node report.
type NodeOutcome struct {
	// Status is SUCCESS or PAUSED; FAILED is communicated via the error
	// return of Execute, not through Status, so the runner's failure path
	// has a single source of truth.
	Status NodeStatus

	// Result is the textual content produced by the node, written to
	// stateMap[nodeID] and to _previous on success.
	Result string

	// Message, when non-nil, is the full structured message produced by an
	// agent node; it is written under _previousMessage and its Metadata is
	// propagated forward.
	Message *Message

	// Branch is set by decision nodes to record the selected branch target.
	Branch string

	// Pending is set by human nodes when they pause.
	Pending *HumanInteraction
}

// Node is the single capability every node variant implements: given an
// invocation context, run to completion, to a pause, or to a failure.
type Node interface {
	ID() string
	Kind() NodeKind
	Execute(ctx context.Context, nic *NodeInvocationContext) (NodeOutcome, error)
}

// Message is the structured payload exchanged with an Agent collaborator
//. It carries accumulated metadata forward across agent invocations.
type Message struct {
	Content  string
	Sender   string
	Type     string
	Metadata map[string]any
}

// Agent is the external collaborator contract assumed by agent-node
// dispatch. Concrete implementations (mocks, provider adapters) live
// outside this package and satisfy Agent structurally.
type Agent interface {
	ProcessMessage(ctx context.Context, msg Message) (Message, error)
}

// ToolResult is the structured output of a Tool invocation.
type ToolResult struct {
	Success  bool
	Result   any
	Metadata map[string]any
}

// Tool is the external collaborator contract assumed by tool-node
// dispatch.
type Tool interface {
	Name() string
	Execute(ctx context.Context, parameters map[string]any, rc Context) (ToolResult, error)
}

// ToolResolver produces a concrete Tool for a tool node at execution time.
// Implementations model four resolution strategies: static binding,
// registry lookup, a caller-supplied selector, or an ordered fallback
// chain.
type ToolResolver interface {
	Resolve(ctx context.Context, nic *NodeInvocationContext) (Tool, error)
}

// Graph is an immutable, validated workflow definition.
type Graph struct {
	GraphID        string
	EntryNodeID    string
	Nodes          map[string]Node
	Edges          []Edge
	OutputSelector func(StateMap) any
}

// NewGraph constructs and validates a Graph. Validation failures surface
// as ValidationError before any run starts.
func NewGraph(graphID, entryNodeID string, nodes []Node, edges []Edge, outputSelector func(StateMap) any) (*Graph, error) {
	nodeMap := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		nodeMap[n.ID()] = n
	}
	stamped := make([]Edge, len(edges))
	for i, e := range edges {
		e.declareIndex = i
		stamped[i] = e
	}
	g := &Graph{
		GraphID:        graphID,
		EntryNodeID:    entryNodeID,
		Nodes:          nodeMap,
		Edges:          stamped,
		OutputSelector: outputSelector,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate enforces the build-time graph invariants: the entry node and
// every edge endpoint exist, every merge node names a declared parallel
// node, and every decision node has at most one default-true branch.
func (g *Graph) Validate() error {
	if _, ok := g.Nodes[g.EntryNodeID]; !ok {
		return newError(KindValidationError, "", "entry node not found: "+g.EntryNodeID, nil)
	}
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return newError(KindValidationError, e.From, "edge references unknown source node", nil)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return newError(KindValidationError, e.To, "edge references unknown destination node", nil)
		}
	}
	for id, n := range g.Nodes {
		if mn, ok := n.(*MergeNodeDesc); ok {
			pn, exists := g.Nodes[mn.ParallelNodeID]
			if !exists {
				return newError(KindValidationError, id, "merge node references unknown parallel node: "+mn.ParallelNodeID, nil)
			}
			if _, isParallel := pn.(*ParallelNodeDesc); !isParallel {
				return newError(KindValidationError, id, "merge node's target is not a parallel node: "+mn.ParallelNodeID, nil)
			}
		}
		if dn, ok := n.(*DecisionNodeDesc); ok {
			defaults := 0
			for _, b := range dn.Branches {
				if b.DefaultTrue {
					defaults++
				}
			}
			if defaults > 1 {
				return newError(KindValidationError, id, "decision node has more than one default-true branch", nil)
			}
		}
	}
	return nil
}
