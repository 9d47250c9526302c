// Package graph provides the core graph execution engine: traversal,
// node dispatch, parallel fan-out/merge, checkpoint/resume, and the
// human-in-the-loop pause protocol.
package graph

import "errors"

// ErrorKind identifies the taxonomy of recoverable and terminal failures
// the engine can produce. Kinds are not Go types: a single Error struct
// carries a Kind value, matching the "kinds, not type names" guidance.
type ErrorKind string

// Error kinds, one per row of the error taxonomy.
const (
	KindNodeExecutionError    ErrorKind = "NodeExecutionError"
	KindToolLookupError       ErrorKind = "ToolLookupError"
	KindDecisionUnmatched     ErrorKind = "DecisionUnmatched"
	KindNoEdgeMatched         ErrorKind = "NoEdgeMatched"
	KindCancelledError        ErrorKind = "CancelledError"
	KindValidationError       ErrorKind = "ValidationError"
	KindCheckpointSaveError   ErrorKind = "CheckpointSaveError"
	KindCheckpointLoadError   ErrorKind = "CheckpointLoadError"
	KindCheckpointSchemaDrift ErrorKind = "CheckpointSchemaDrift"
	KindNoPendingInteraction  ErrorKind = "NoPendingInteraction"
	KindHumanResponseInvalid  ErrorKind = "HumanResponseInvalid"
	KindHumanResponseExpired  ErrorKind = "HumanResponseExpired"
)

// Error is the single structured error type produced by the engine. Every
// error the engine returns to a caller, or records on a per-node report,
// carries a stable Kind/Code, a human message, and an optional context map
// for structured diagnostics.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	NodeID  string
	Context map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.NodeID != "" {
		return string(e.Kind) + ": node " + e.NodeID + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap supports errors.Is/errors.As against the wrapped Cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, target) match on Kind, so callers can write
// errors.Is(err, &graph.Error{Kind: graph.KindDecisionUnmatched}) or, more
// simply, use IsKind below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// IsKind reports whether err is, or wraps, a graph Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func newError(kind ErrorKind, nodeID, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: msg, NodeID: nodeID, Cause: cause}
}

func newErrorCtx(kind ErrorKind, nodeID, msg string, cause error, ctxMap map[string]any) *Error {
	e := newError(kind, nodeID, msg, cause)
	e.Context = ctxMap
	return e
}
