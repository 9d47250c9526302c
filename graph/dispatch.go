package graph

import (
	"context"
	"fmt"
)

// ---- Agent node ---------------------------------------------------------

// AgentNodeDesc invokes an Agent collaborator, building its input message
// from _previous (or an explicit input key) and propagating the previous
// message's metadata forward.
type AgentNodeDesc struct {
	NodeID   string
	Agent    Agent
	InputKey string // optional; defaults to KeyPrevious
	Sender   string // optional sender label for the outgoing message
}

func (n *AgentNodeDesc) ID() string     { return n.NodeID }
func (n *AgentNodeDesc) Kind() NodeKind { return KindAgent }

func (n *AgentNodeDesc) Execute(ctx context.Context, nic *NodeInvocationContext) (NodeOutcome, error) {
	select {
	case <-ctx.Done():
		return NodeOutcome{}, newError(KindCancelledError, n.NodeID, "cancelled before agent dispatch", ctx.Err())
	default:
	}

	inputKey := n.InputKey
	if inputKey == "" {
		inputKey = KeyPrevious
	}
	content, _ := nic.StateMap[inputKey].(string)

	// Build a fresh structured message every invocation; the accumulated
	// metadata flows forward explicitly rather than through shared object
	// references.
	metadata := map[string]any{}
	if prevMsg, ok := messageFromState(nic.StateMap[KeyPreviousMessage]); ok {
		for k, v := range prevMsg.Metadata {
			metadata[k] = v
		}
	}

	outgoing := Message{
		Content:  content,
		Sender:   n.Sender,
		Type:     "agent_input",
		Metadata: metadata,
	}

	resp, err := n.Agent.ProcessMessage(ctx, outgoing)
	if err != nil {
		return NodeOutcome{}, newError(KindNodeExecutionError, n.NodeID, "agent invocation failed", err)
	}

	respCopy := resp
	nic.StateMap[n.NodeID] = respCopy.Content
	nic.StateMap[KeyPrevious] = respCopy.Content
	nic.StateMap[KeyPreviousMessage] = &respCopy

	n.recordCost(nic, respCopy)

	return NodeOutcome{Status: NodeSuccess, Result: respCopy.Content, Message: &respCopy}, nil
}

// recordCost feeds the engine's CostTracker from the token-usage metadata
// the provider adapters attach to their responses. A missing pricing
// entry or absent usage metadata never fails the node.
func (n *AgentNodeDesc) recordCost(nic *NodeInvocationContext, resp Message) {
	if nic.Costs == nil {
		return
	}
	model, _ := resp.Metadata["model"].(string)
	if model == "" {
		return
	}
	input, _ := intFromState(resp.Metadata["input_tokens"])
	output, _ := intFromState(resp.Metadata["output_tokens"])
	_ = nic.Costs.RecordLLMCall(n.NodeID, model, input, output)
}

// ---- Tool node -----------------------------------------------------------

// ParamMapper produces tool arguments from the current state map. Keys
// whose value is nil are dropped before the call.
type ParamMapper func(state StateMap) map[string]any

// ToolNodeDesc resolves a Tool (statically, via a registry, via a
// caller-supplied selector, or via an ordered fallback chain) and invokes
// it with parameters produced by Mapper.
type ToolNodeDesc struct {
	NodeID   string
	Resolver ToolResolver
	Mapper   ParamMapper
}

func (n *ToolNodeDesc) ID() string     { return n.NodeID }
func (n *ToolNodeDesc) Kind() NodeKind { return KindTool }

func (n *ToolNodeDesc) Execute(ctx context.Context, nic *NodeInvocationContext) (NodeOutcome, error) {
	select {
	case <-ctx.Done():
		return NodeOutcome{}, newError(KindCancelledError, n.NodeID, "cancelled before tool dispatch", ctx.Err())
	default:
	}

	tool, err := n.Resolver.Resolve(ctx, nic)
	if err != nil {
		return NodeOutcome{}, newError(KindToolLookupError, n.NodeID, "tool resolution failed", err)
	}

	args := map[string]any{}
	if n.Mapper != nil {
		for k, v := range n.Mapper(nic.StateMap) {
			if v == nil {
				continue
			}
			args[k] = v
		}
	}

	result, err := tool.Execute(ctx, args, nic.Context)

	nic.StateMap[KeyToolName] = tool.Name()
	if err != nil {
		nic.StateMap[KeyToolSuccess] = false
		return NodeOutcome{}, newError(KindNodeExecutionError, n.NodeID, "tool execution failed", err)
	}

	nic.StateMap[KeyToolSuccess] = result.Success
	nic.StateMap[KeyToolLastMetadata] = result.Metadata

	text := fmt.Sprintf("%v", result.Result)
	nic.StateMap[n.NodeID] = text
	nic.StateMap[KeyPrevious] = text

	return NodeOutcome{Status: NodeSuccess, Result: text}, nil
}

// ---- Decision node ---------------------------------------------------------

// Branch is one candidate route out of a decision node. At most one
// branch across a node's Branches may set DefaultTrue (enforced at build
// time by Graph.Validate).
type Branch struct {
	Name        string
	Target      string
	Predicate   func(lastResult string, state StateMap) bool
	DefaultTrue bool
}

// DecisionNodeDesc evaluates Branches in declared order over the last
// node's result and selects the first match.
type DecisionNodeDesc struct {
	NodeID   string
	Branches []Branch
}

func (n *DecisionNodeDesc) ID() string     { return n.NodeID }
func (n *DecisionNodeDesc) Kind() NodeKind { return KindDecision }

func (n *DecisionNodeDesc) Execute(ctx context.Context, nic *NodeInvocationContext) (NodeOutcome, error) {
	lastResult, _ := nic.StateMap[KeyPrevious].(string)

	for _, b := range n.Branches {
		if b.DefaultTrue {
			nic.StateMap[KeySelectedBranch] = b.Target
			return NodeOutcome{Status: NodeSuccess, Branch: b.Target}, nil
		}
		if b.Predicate != nil && b.Predicate(lastResult, nic.StateMap) {
			nic.StateMap[KeySelectedBranch] = b.Target
			return NodeOutcome{Status: NodeSuccess, Branch: b.Target}, nil
		}
	}

	return NodeOutcome{}, newError(KindDecisionUnmatched, n.NodeID, "no branch matched and no default-true branch declared", nil)
}

// ---- Output node -----------------------------------------------------------

// Transformer turns the final state map into the run's result value.
type Transformer func(state StateMap) any

// OutputNodeDesc applies Transformer; its result becomes the run's final
// result.
type OutputNodeDesc struct {
	NodeID      string
	Transformer Transformer
}

func (n *OutputNodeDesc) ID() string     { return n.NodeID }
func (n *OutputNodeDesc) Kind() NodeKind { return KindOutput }

func (n *OutputNodeDesc) Execute(_ context.Context, nic *NodeInvocationContext) (NodeOutcome, error) {
	var result any
	if n.Transformer != nil {
		result = n.Transformer(nic.StateMap)
	} else {
		result, _ = nic.StateMap[KeyPrevious].(string)
	}
	text := fmt.Sprintf("%v", result)
	nic.StateMap[n.NodeID] = result
	return NodeOutcome{Status: NodeSuccess, Result: text}, nil
}

// ---- Custom node -----------------------------------------------------------

// CustomStep is a user-provided suspendable step.
type CustomStep func(ctx context.Context, nic *NodeInvocationContext) (NodeOutcome, error)

// CustomNodeDesc wraps a user-supplied step directly in the Node
// interface, with no framework logic interposed.
type CustomNodeDesc struct {
	NodeID string
	Step   CustomStep
}

func (n *CustomNodeDesc) ID() string     { return n.NodeID }
func (n *CustomNodeDesc) Kind() NodeKind { return KindCustom }

func (n *CustomNodeDesc) Execute(ctx context.Context, nic *NodeInvocationContext) (NodeOutcome, error) {
	return n.Step(ctx, nic)
}
