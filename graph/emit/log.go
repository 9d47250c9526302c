// Package emit provides pluggable observability backends for graph runs:
// structured logging, OpenTelemetry spans, and in-memory buffering for
// tests. Each implementation satisfies graph.Emitter structurally.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dshills/agentgraph-go/graph"
)

// LogEmitter writes events to a writer, either as human-readable text or
// as JSON lines.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter builds a LogEmitter. A nil writer defaults to os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(e graph.Event) {
	if l.jsonMode {
		l.emitJSON(e)
		return
	}
	l.emitText(e)
}

func (l *LogEmitter) emitJSON(e graph.Event) {
	data, err := json.Marshal(struct {
		Type     string `json:"type"`
		RunID    string `json:"runID"`
		GraphID  string `json:"graphID"`
		NodeID   string `json:"nodeID,omitempty"`
		Status   string `json:"status,omitempty"`
		Err      string `json:"err,omitempty"`
		Attempt  int    `json:"attempt,omitempty"`
		Duration string `json:"duration,omitempty"`
	}{
		Type:     string(e.Type),
		RunID:    e.RunID,
		GraphID:  e.GraphID,
		NodeID:   e.NodeID,
		Status:   string(e.Status),
		Err:      errString(e.Err),
		Attempt:  e.Attempt,
		Duration: e.Duration.String(),
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(e graph.Event) {
	fmt.Fprintf(l.writer, "[%s] runID=%s graphID=%s nodeID=%s status=%s",
		e.Type, e.RunID, e.GraphID, e.NodeID, e.Status)
	if e.Err != nil {
		fmt.Fprintf(l.writer, " err=%v", e.Err)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(l.writer, " attempt=%d", e.Attempt)
	}
	fmt.Fprintln(l.writer)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (l *LogEmitter) EmitBatch(es []graph.Event) {
	for _, e := range es {
		l.Emit(e)
	}
}

// Flush is a no-op: LogEmitter writes synchronously with no internal
// buffer. Wrap writer in a bufio.Writer and flush that directly if
// buffered output is needed.
func (l *LogEmitter) Flush() error { return nil }
