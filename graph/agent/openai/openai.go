// Package openai adapts OpenAI's chat completions API to the graph.Agent
// contract an agent node dispatches against.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/agentgraph-go/graph"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ToolSpec describes one tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Agent implements graph.Agent for OpenAI's chat completions API. Each
// ProcessMessage call is a single-turn request built from the incoming
// message content, with transient errors (timeouts, rate limits, 5xx)
// retried up to maxRetries times after a fixed retryDelay; rate-limit
// errors wait retryDelay times the retry number, growing linearly.
type Agent struct {
	Sender       string
	SystemPrompt string
	Tools        []ToolSpec

	apiKey     string
	modelName  string
	client     openaiClient
	maxRetries int
	retryDelay time.Duration
}

type openaiClient interface {
	createChatCompletion(ctx context.Context, systemPrompt, content string, tools []ToolSpec) (chatResult, error)
}

type chatResult struct {
	Text      string
	ToolCalls []toolCall
	Input     int64
	Output    int64
}

type toolCall struct {
	Name  string
	Input map[string]any
}

// New creates an Agent for modelName. An empty modelName defaults to
// gpt-4o, with 3 retries and a 1 second base retry delay.
func New(apiKey, modelName string) *Agent {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &Agent{
		Sender:     "openai",
		apiKey:     apiKey,
		modelName:  modelName,
		client:     &defaultClient{apiKey: apiKey, modelName: modelName},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// ProcessMessage implements graph.Agent.
func (a *Agent) ProcessMessage(ctx context.Context, msg graph.Message) (graph.Message, error) {
	if ctx.Err() != nil {
		return graph.Message{}, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		out, err := a.client.createChatCompletion(ctx, a.SystemPrompt, msg.Content, a.Tools)
		if err == nil {
			return a.toGraphMessage(msg, out), nil
		}

		lastErr = err
		if !isTransientError(err) {
			return graph.Message{}, err
		}
		if attempt >= a.maxRetries {
			break
		}

		delay := a.retryDelay
		if isRateLimitError(err) {
			delay = a.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return graph.Message{}, ctx.Err()
		}
	}

	return graph.Message{}, fmt.Errorf("openai: request failed after %d retries: %w", a.maxRetries, lastErr)
}

func (a *Agent) toGraphMessage(in graph.Message, out chatResult) graph.Message {
	metadata := map[string]any{}
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["model"] = a.modelName
	metadata["input_tokens"] = int(out.Input)
	metadata["output_tokens"] = int(out.Output)
	if len(out.ToolCalls) > 0 {
		calls := make([]map[string]any, len(out.ToolCalls))
		for i, tc := range out.ToolCalls {
			calls[i] = map[string]any{"name": tc.Name, "input": tc.Input}
		}
		metadata["tool_calls"] = calls
	}
	return graph.Message{Content: out.Text, Sender: a.Sender, Type: "agent_output", Metadata: metadata}
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var rateLimitErr *rateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rateLimitErr *rateLimitError
	return errors.As(err, &rateLimitErr)
}

type rateLimitError struct{ message string }

func (e *rateLimitError) Error() string { return e.message }

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createChatCompletion(ctx context.Context, systemPrompt, content string, tools []ToolSpec) (chatResult, error) {
	if c.apiKey == "" {
		return chatResult{}, errors.New("openai: API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	var messages []openaisdk.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(systemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(content))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: messages,
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return chatResult{}, fmt.Errorf("openai: API error: %w", err)
	}
	return convertResponse(resp), nil
}

func convertTools(tools []ToolSpec) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		result[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openaisdk.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Schema),
			},
		}
	}
	return result
}

func convertResponse(resp *openaisdk.ChatCompletion) chatResult {
	var out chatResult
	out.Input = resp.Usage.PromptTokens
	out.Output = resp.Usage.CompletionTokens
	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message
	out.Text = msg.Content
	if len(msg.ToolCalls) > 0 {
		out.ToolCalls = make([]toolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			out.ToolCalls[i] = toolCall{Name: tc.Function.Name, Input: parseToolInput(tc.Function.Arguments)}
		}
	}
	return out
}

func parseToolInput(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	return map[string]any{"_raw": raw}
}
