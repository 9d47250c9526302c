package main

import (
	"github.com/dshills/agentgraph-go/graph"
	"github.com/dshills/agentgraph-go/graph/agent"
)

// buildDemoGraph assembles a small draft -> review -> publish pipeline:
// an agent node drafts text, a human node approves or rejects it, and an
// output node emits the final result. It exists to give the CLI something
// concrete to run, resume, and inspect against.
func buildDemoGraph() (*graph.Graph, error) {
	draft := &graph.AgentNodeDesc{
		NodeID: "draft",
		Agent:  &agent.Mock{Responses: []graph.Message{{Content: "Here is a draft."}}},
		Sender: "drafter",
	}
	review := &graph.HumanNodeDesc{
		NodeID:        "review",
		ResponseKind:  graph.InteractionSingle,
		Prompt:        "Approve this draft?",
		AllowFreeText: true,
		Options: []graph.InteractionOption{
			{ID: "approve", Label: "Approve"},
			{ID: "reject", Label: "Reject"},
		},
	}
	publish := &graph.OutputNodeDesc{NodeID: "publish"}

	nodes := []graph.Node{draft, review, publish}
	edges := []graph.Edge{
		{From: "draft", To: "review", Predicate: graph.AlwaysTrue},
		{From: "review", To: "publish", Priority: 0, Predicate: func(in graph.PredicateInput) bool {
			return in.Result == "approve"
		}},
	}

	return graph.NewGraph("demo-publish", "draft", nodes, edges, nil)
}
