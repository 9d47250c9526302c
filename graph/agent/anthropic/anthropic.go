// Package anthropic adapts Anthropic's Claude API to the graph.Agent
// contract an agent node dispatches against.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dshills/agentgraph-go/graph"
)

// ToolSpec describes one tool Claude may call, mirroring the shape used by
// graph/tool registries so callers can reuse the same schema.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Agent implements graph.Agent for Anthropic's Claude API. Each
// ProcessMessage call is a single-turn request: the incoming message
// content becomes the one user turn, and SystemPrompt (if set) is sent as
// Claude's separate system parameter.
type Agent struct {
	Sender       string
	SystemPrompt string
	Tools        []ToolSpec
	MaxTokens    int64

	apiKey    string
	modelName string
	client    anthropicClient
}

// anthropicClient isolates the SDK call so tests can substitute a fake.
type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt, content string, tools []ToolSpec, maxTokens int64) (chatResult, error)
}

type chatResult struct {
	Text         string
	ToolCalls    []toolCall
	InputTokens  int64
	OutputTokens int64
}

type toolCall struct {
	Name  string
	Input map[string]any
}

// New creates an Agent for modelName. An empty modelName defaults to
// Claude Sonnet 4.5.
func New(apiKey, modelName string) *Agent {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &Agent{
		Sender:    "anthropic",
		MaxTokens: 4096,
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// ProcessMessage implements graph.Agent. Usage (model name, input/output
// token counts) is attached to the returned message's Metadata so a
// CostTracker can be fed from agent-node dispatch without this package
// depending on graph.CostTracker directly.
func (a *Agent) ProcessMessage(ctx context.Context, msg graph.Message) (graph.Message, error) {
	if ctx.Err() != nil {
		return graph.Message{}, ctx.Err()
	}

	maxTokens := a.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	out, err := a.client.createMessage(ctx, a.SystemPrompt, msg.Content, a.Tools, maxTokens)
	if err != nil {
		var apiErr *anthropicError
		if errors.As(err, &apiErr) {
			return graph.Message{}, apiErr
		}
		return graph.Message{}, err
	}

	metadata := map[string]any{}
	for k, v := range msg.Metadata {
		metadata[k] = v
	}
	metadata["model"] = a.modelName
	metadata["input_tokens"] = int(out.InputTokens)
	metadata["output_tokens"] = int(out.OutputTokens)
	if len(out.ToolCalls) > 0 {
		calls := make([]map[string]any, len(out.ToolCalls))
		for i, tc := range out.ToolCalls {
			calls[i] = map[string]any{"name": tc.Name, "input": tc.Input}
		}
		metadata["tool_calls"] = calls
	}

	return graph.Message{
		Content:  out.Text,
		Sender:   a.Sender,
		Type:     "agent_output",
		Metadata: metadata,
	}, nil
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createMessage(ctx context.Context, systemPrompt, content string, tools []ToolSpec, maxTokens int64) (chatResult, error) {
	if c.apiKey == "" {
		return chatResult{}, errors.New("anthropic: API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  []anthropicsdk.MessageParam{anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(content))},
		MaxTokens: maxTokens,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return chatResult{}, fmt.Errorf("anthropic: API error: %w", err)
	}
	return convertResponse(resp), nil
}

func convertTools(tools []ToolSpec) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, t := range tools {
		var properties any
		var required []string
		if t.Schema != nil {
			if props, ok := t.Schema["properties"]; ok {
				properties = props
			}
			if req, ok := t.Schema["required"].([]string); ok {
				required = req
			}
		}
		result[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.String(t.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{Properties: properties, Required: required},
			},
		}
	}
	return result
}

func convertResponse(resp *anthropicsdk.Message) chatResult {
	var out chatResult
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		case anthropicsdk.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, toolCall{Name: b.Name, Input: convertToolInput(b.Input)})
		}
	}
	out.InputTokens = resp.Usage.InputTokens
	out.OutputTokens = resp.Usage.OutputTokens
	return out
}

func convertToolInput(input any) map[string]any {
	if input == nil {
		return nil
	}
	if m, ok := input.(map[string]any); ok {
		return m
	}
	return map[string]any{"_raw": input}
}

// anthropicError represents an Anthropic API error, preserved across
// ProcessMessage so callers can branch on Type (e.g. rate_limit_error).
type anthropicError struct {
	Type    string
	Message string
}

func (e *anthropicError) Error() string { return e.Type + ": " + e.Message }
