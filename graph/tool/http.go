package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dshills/agentgraph-go/graph"
)

// HTTP is a tool for making outbound HTTP requests: GET/POST with
// optional headers and body, returning status, headers, and body.
//
// Parameters:
//   - method: "GET" or "POST", defaults to "GET"
//   - url: target URL (required)
//   - headers: optional map of request headers
//   - body: optional request body (POST)
type HTTP struct {
	ToolName string
	client   *http.Client
}

// NewHTTP creates an HTTP tool with default settings. Per-call timeouts
// are expected to come from the request context, not the client.
func NewHTTP() *HTTP {
	return &HTTP{ToolName: "http_request", client: &http.Client{}}
}

func (h *HTTP) Name() string { return h.ToolName }

func (h *HTTP) Execute(ctx context.Context, parameters map[string]any, _ graph.Context) (graph.ToolResult, error) {
	urlStr, ok := parameters["url"].(string)
	if !ok || urlStr == "" {
		return graph.ToolResult{}, fmt.Errorf("http tool: url parameter required (string)")
	}

	method := "GET"
	if m, ok := parameters["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return graph.ToolResult{}, fmt.Errorf("http tool: unsupported method %s", method)
	}

	var body io.Reader
	if bodyStr, ok := parameters["body"].(string); ok && bodyStr != "" {
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return graph.ToolResult{}, fmt.Errorf("http tool: build request: %w", err)
	}
	if headers, ok := parameters["headers"].(map[string]any); ok {
		for k, v := range headers {
			if vs, ok := v.(string); ok {
				req.Header.Set(k, vs)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return graph.ToolResult{}, fmt.Errorf("http tool: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return graph.ToolResult{}, fmt.Errorf("http tool: read response: %w", err)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for k, vs := range resp.Header {
		if len(vs) == 1 {
			respHeaders[k] = vs[0]
		} else {
			respHeaders[k] = vs
		}
	}

	return graph.ToolResult{
		Success: resp.StatusCode < 400,
		Result: map[string]any{
			"status_code": resp.StatusCode,
			"headers":     respHeaders,
			"body":        string(respBody),
		},
	}, nil
}
