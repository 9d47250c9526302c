package graph

import (
	"context"
	"time"
)

// InteractionKind names the shape of response a human node expects back.
type InteractionKind string

const (
	InteractionText     InteractionKind = "TEXT"
	InteractionSingle   InteractionKind = "SINGLE"
	InteractionMulti    InteractionKind = "MULTI"
	InteractionQuantity InteractionKind = "QUANTITY"
)

// InteractionOption is one selectable choice offered to the human.
type InteractionOption struct {
	ID          string
	Label       string
	Description string
}

// HumanInteraction is the pending-approval record a human node produces
// when it pauses a run. ToolCallID is stable and derived from run and node
// identity, not random, so a resumed run and its originating pause always
// agree on which interaction is being answered.
type HumanInteraction struct {
	NodeID        string
	ToolCallID    string
	Kind          InteractionKind
	Prompt        string
	Options       []InteractionOption
	AllowFreeText bool
	PausedAt      time.Time
	ExpiresAt     *time.Time
}

// HumanResponse answers a pending HumanInteraction. Canonical is required
// to be non-blank: it is the single routing value decision nodes and
// downstream predicates key off of, regardless of which of the
// kind-specific fields was actually populated.
type HumanResponse struct {
	NodeID     string
	ToolCallID string
	Kind       InteractionKind
	RawText    string
	Selected   []string
	Quantities map[string]float64
	Structured map[string]any
	Canonical  string
	Metadata   map[string]any
}

// Validator rejects a HumanResponse before it is applied to state. A
// non-nil error becomes HumanResponseInvalid.
type Validator func(resp HumanResponse, interaction HumanInteraction) error

// PromptResolver computes a human node's prompt dynamically. When set, it
// takes precedence over StateMap[PromptKey] and Context[PromptKey], which
// in turn take precedence over the static Prompt/FallbackPrompt.
type PromptResolver func(state StateMap, ctx Context) (string, bool)

// HumanNodeDesc pauses a run for out-of-band human input. Execute is only
// ever called on first arrival at the node; resuming with a response is
// handled separately by ResumeWithHumanResponse, which never re-enters
// Execute for the paused node.
type HumanNodeDesc struct {
	NodeID         string
	ResponseKind   InteractionKind
	Prompt         string
	FallbackPrompt string
	PromptKey      string
	PromptResolver PromptResolver
	Options        []InteractionOption
	AllowFreeText  bool
	TTL            time.Duration // zero means no expiry
	Validate       Validator
}

func (n *HumanNodeDesc) ID() string     { return n.NodeID }
func (n *HumanNodeDesc) Kind() NodeKind { return KindHuman }

func resolvePrompt(n *HumanNodeDesc, nic *NodeInvocationContext) string {
	if n.PromptResolver != nil {
		if p, ok := n.PromptResolver(nic.StateMap, nic.Context); ok {
			return p
		}
	}
	if n.PromptKey != "" {
		if v, ok := nic.StateMap[n.PromptKey]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
		if v, ok := nic.Context.Get(n.PromptKey); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if n.Prompt != "" {
		return n.Prompt
	}
	return n.FallbackPrompt
}

func hitlToolCallID(runID, nodeID string) string {
	return "hitl_" + runID + "_" + nodeID
}

func (n *HumanNodeDesc) Execute(_ context.Context, nic *NodeInvocationContext) (NodeOutcome, error) {
	interaction := HumanInteraction{
		NodeID:        n.NodeID,
		ToolCallID:    hitlToolCallID(nic.RunID, n.NodeID),
		Kind:          n.ResponseKind,
		Prompt:        resolvePrompt(n, nic),
		Options:       n.Options,
		AllowFreeText: n.AllowFreeText || len(n.Options) == 0,
		PausedAt:      time.Now(),
	}
	if n.TTL > 0 {
		exp := interaction.PausedAt.Add(n.TTL)
		interaction.ExpiresAt = &exp
	}

	nic.StateMap[KeyHITL] = map[string]any{
		"pending":    true,
		"toolCallId": interaction.ToolCallID,
		"nodeId":     interaction.NodeID,
	}

	return NodeOutcome{Status: NodePaused, Pending: &interaction}, nil
}

// ApplyHumanResponse validates resp against interaction and, on success,
// writes the response onto state under the reserved hitl key and into
// _previousMessage's metadata, matching how every other node variant
// publishes its output.
//
// now is passed in rather than read from time.Now so callers keep resume
// deterministic and testable; the runner supplies the real clock.
func (n *HumanNodeDesc) ApplyHumanResponse(nic *NodeInvocationContext, interaction HumanInteraction, resp HumanResponse, now time.Time) (NodeOutcome, error) {
	if resp.NodeID != n.NodeID || resp.ToolCallID != interaction.ToolCallID {
		return NodeOutcome{}, newError(KindHumanResponseInvalid, n.NodeID, "response does not match pending interaction", nil)
	}
	if interaction.ExpiresAt != nil && now.After(*interaction.ExpiresAt) {
		return NodeOutcome{}, newError(KindHumanResponseExpired, n.NodeID, "human response arrived after expiry", nil)
	}
	if resp.Canonical == "" {
		return NodeOutcome{}, newError(KindHumanResponseInvalid, n.NodeID, "response canonical value must not be blank", nil)
	}
	if n.Validate != nil {
		if err := n.Validate(resp, interaction); err != nil {
			return NodeOutcome{}, newErrorCtx(KindHumanResponseInvalid, n.NodeID, "response rejected by validator", err, nil)
		}
	}

	hitlPayload := map[string]any{
		"pending":    false,
		"toolCallId": resp.ToolCallID,
		"nodeId":     resp.NodeID,
		"canonical":  resp.Canonical,
		"rawText":    resp.RawText,
		"selected":   resp.Selected,
		"quantities": resp.Quantities,
		"structured": resp.Structured,
	}
	nic.StateMap[KeyHITL] = hitlPayload
	nic.StateMap[n.NodeID] = resp.Canonical
	nic.StateMap[KeyPrevious] = resp.Canonical

	if prevMsg, ok := messageFromState(nic.StateMap[KeyPreviousMessage]); ok {
		msg := *prevMsg
		if msg.Metadata == nil {
			msg.Metadata = map[string]any{}
		} else {
			cp := make(map[string]any, len(msg.Metadata)+1)
			for k, v := range msg.Metadata {
				cp[k] = v
			}
			msg.Metadata = cp
		}
		msg.Metadata["hitl"] = hitlPayload
		nic.StateMap[KeyPreviousMessage] = &msg
	}

	return NodeOutcome{Status: NodeSuccess, Result: resp.Canonical}, nil
}
