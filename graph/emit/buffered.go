package emit

import (
	"sync"

	"github.com/dshills/agentgraph-go/graph"
)

// BufferedEmitter stores every event in memory, grouped by run ID. Useful
// for tests and for post-run inspection; not meant for long-lived
// production processes with unbounded run counts.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]graph.Event
}

func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: map[string][]graph.Event{}}
}

func (b *BufferedEmitter) Emit(e graph.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[e.RunID] = append(b.events[e.RunID], e)
}

func (b *BufferedEmitter) EmitBatch(es []graph.Event) {
	for _, e := range es {
		b.Emit(e)
	}
}

func (b *BufferedEmitter) Flush() error { return nil }

// History returns a copy of the events recorded for runID, in emit order,
// or nil when nothing is recorded for runID.
func (b *BufferedEmitter) History(runID string) []graph.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.events[runID]
	if src == nil {
		return nil
	}
	out := make([]graph.Event, len(src))
	copy(out, src)
	return out
}

// Clear drops recorded history for runID, or everything when runID is "".
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if runID == "" {
		b.events = map[string][]graph.Event{}
		return
	}
	delete(b.events, runID)
}
