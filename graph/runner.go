package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// runDeps bundles the optional collaborators a run may use beyond the
// graph itself: a checkpoint store/config pair, which is absent for plain
// Run calls.
type runDeps struct {
	store  CheckpointStore
	config CheckpointConfig
}

// Run executes graph from its entry node with no checkpoint persistence.
func (e *Engine) Run(ctx context.Context, input StateMap) RunReport {
	return e.run(ctx, newRunID(), input, NewContext(nil), runDeps{})
}

// RunWithCheckpoint executes graph with checkpoint persistence per cfg,
// returning WAITING_FOR_HUMAN (with CheckpointID set) when a human node
// pauses the run.
func (e *Engine) RunWithCheckpoint(ctx context.Context, input StateMap, store CheckpointStore, cfg CheckpointConfig) RunReport {
	return e.run(ctx, newRunID(), input, NewContext(nil), runDeps{store: store, config: cfg})
}

func newRunID() string { return uuid.NewString() }

func (e *Engine) run(ctx context.Context, runID string, input StateMap, runCtx Context, deps runDeps) RunReport {
	rs := NewRunState(runID, e.graph.GraphID, e.graph.EntryNodeID, input, runCtx)
	return e.drive(ctx, rs, deps, nil)
}

// Resume loads checkpointID, advances past the checkpoint's current node
// without re-running it (for an on-error checkpoint, that is the node that
// failed), and continues traversal.
func (e *Engine) Resume(ctx context.Context, checkpointID string, store CheckpointStore) RunReport {
	started := time.Now()
	cp, err := store.Load(checkpointID)
	if err != nil {
		return RunReport{Status: StatusFailed, Error: newErrorCtx(KindCheckpointLoadError, "", "failed to load checkpoint", err, map[string]any{"checkpointId": checkpointID})}
	}
	if err := e.validateResume(cp); err != nil {
		return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusFailed, Error: err, CheckpointID: checkpointID}
	}
	rs, err := restoreRunState(cp)
	if err != nil {
		return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusFailed, Error: err, CheckpointID: checkpointID}
	}

	dest, hasEdges, matched := evaluateEdges(e.graph.Edges, rs.CurrentNodeID, PredicateInput{
		Result:   stringOrEmpty(rs.StateMap[KeyPrevious]),
		StateMap: rs.StateMap,
		Context:  rs.Context,
	})
	if !hasEdges {
		return e.buildReport(rs, StatusCompleted, e.outputResult(rs), nil, checkpointID, started)
	}
	if !matched {
		return e.buildReport(rs, StatusFailed, nil, newError(KindNoEdgeMatched, rs.CurrentNodeID, "no outgoing edge matched on resume", nil), checkpointID, started)
	}
	rs.CurrentNodeID = dest

	return e.drive(ctx, rs, runDeps{store: store, config: e.checkpointConfig}, nil)
}

// ResumeWithHumanResponse applies resp to the pending interaction recorded
// at checkpointID and resumes traversal from the human node's successor.
func (e *Engine) ResumeWithHumanResponse(ctx context.Context, checkpointID string, resp HumanResponse, store CheckpointStore) RunReport {
	started := time.Now()
	cp, err := store.Load(checkpointID)
	if err != nil {
		return RunReport{Status: StatusFailed, Error: newErrorCtx(KindCheckpointLoadError, "", "failed to load checkpoint", err, map[string]any{"checkpointId": checkpointID})}
	}
	if cp.Pending == nil {
		return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusFailed, Error: newError(KindNoPendingInteraction, cp.CurrentNodeID, "checkpoint has no pending human interaction", nil), CheckpointID: checkpointID}
	}
	if err := e.validateResume(cp); err != nil {
		return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusFailed, Error: err, CheckpointID: checkpointID}
	}

	node, ok := e.graph.Nodes[cp.CurrentNodeID]
	if !ok {
		return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusFailed, Error: newError(KindCheckpointSchemaDrift, cp.CurrentNodeID, "human node no longer present in graph", nil), CheckpointID: checkpointID}
	}
	humanNode, ok := node.(*HumanNodeDesc)
	if !ok {
		return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusFailed, Error: newError(KindCheckpointSchemaDrift, cp.CurrentNodeID, "node at checkpoint is not a human node", nil), CheckpointID: checkpointID}
	}

	rs, err := restoreRunState(cp)
	if err != nil {
		return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusFailed, Error: err, CheckpointID: checkpointID}
	}

	nic := &NodeInvocationContext{GraphID: e.graph.GraphID, RunID: rs.RunID, NodeID: humanNode.NodeID, StateMap: rs.StateMap, Context: rs.Context, Costs: e.costs, Metrics: e.metrics}
	outcome, err := humanNode.ApplyHumanResponse(nic, *cp.Pending, resp, time.Now())
	if err != nil {
		// Per OPEN QUESTION DECISIONS (b): no snapshot mutation on rejection.
		return RunReport{GraphID: cp.GraphID, RunID: cp.RunID, Status: StatusWaitingForHuman, Error: err, CheckpointID: checkpointID}
	}

	dest, hasEdges, matched := evaluateEdges(e.graph.Edges, humanNode.NodeID, PredicateInput{
		Result:   outcome.Result,
		StateMap: rs.StateMap,
		Context:  rs.Context,
	})
	rs.Status = StatusRunning
	if !hasEdges {
		return e.buildReport(rs, StatusCompleted, e.outputResult(rs), nil, checkpointID, started)
	}
	if !matched {
		return e.buildReport(rs, StatusFailed, nil, newError(KindNoEdgeMatched, humanNode.NodeID, "no outgoing edge matched after human response", nil), checkpointID, started)
	}
	rs.CurrentNodeID = dest

	return e.drive(ctx, rs, runDeps{store: store, config: e.checkpointConfig}, nil)
}

// GetPendingInteractions returns the pending interaction recorded at
// checkpointID, if any, without mutating the checkpoint.
func GetPendingInteractions(checkpointID string, store CheckpointStore) ([]HumanInteraction, error) {
	cp, err := store.Load(checkpointID)
	if err != nil {
		return nil, newErrorCtx(KindCheckpointLoadError, "", "failed to load checkpoint", err, map[string]any{"checkpointId": checkpointID})
	}
	if cp.Pending == nil {
		return nil, nil
	}
	return []HumanInteraction{*cp.Pending}, nil
}

func (e *Engine) validateResume(cp Checkpoint) error {
	if _, ok := e.graph.Nodes[cp.CurrentNodeID]; !ok {
		return newErrorCtx(KindCheckpointSchemaDrift, cp.CurrentNodeID, "checkpoint's current node not found in graph", nil, map[string]any{"checkpointId": cp.CheckpointID})
	}
	if cp.Pending != nil {
		if _, ok := e.graph.Nodes[cp.Pending.NodeID]; !ok {
			return newErrorCtx(KindCheckpointSchemaDrift, cp.Pending.NodeID, "checkpoint's pending interaction node not found in graph", nil, map[string]any{"checkpointId": cp.CheckpointID})
		}
	}
	return nil
}

// drive runs the traversal loop from rs.CurrentNodeID until the run
// pauses, fails, completes, or is cancelled.
func (e *Engine) drive(ctx context.Context, rs *RunState, deps runDeps, mws []Middleware) RunReport {
	if mws == nil {
		mws = e.middlewares
	}
	mwChain := newChain(mws)
	mwChain.onStart(ctx, rs.RunID, rs.GraphID)
	e.emit(Event{Type: EventRunStarted, GraphID: rs.GraphID, RunID: rs.RunID})

	runStarted := time.Now()
	var lastCheckpoint time.Time
	nodesSinceSave := 0
	var checkpointID string

	finish := func(status Status, result any, err error) RunReport {
		final := e.buildReport(rs, status, result, err, checkpointID, runStarted)
		mwChain.onFinish(ctx, final)
		e.emit(Event{Type: EventRunFinished, GraphID: rs.GraphID, RunID: rs.RunID, Status: string(status), Err: err})
		return final
	}

	for {
		select {
		case <-ctx.Done():
			return finish(StatusCancelled, nil, newError(KindCancelledError, rs.CurrentNodeID, "run cancelled", ctx.Err()))
		default:
		}

		node, ok := e.graph.Nodes[rs.CurrentNodeID]
		if !ok {
			return finish(StatusFailed, nil, newError(KindValidationError, rs.CurrentNodeID, "node not found during traversal", nil))
		}

		rs.VisitCount[rs.CurrentNodeID]++
		if e.maxVisitsPerNode > 0 && rs.VisitCount[rs.CurrentNodeID] > e.maxVisitsPerNode {
			err := newErrorCtx(KindNodeExecutionError, rs.CurrentNodeID, "node visit cap exceeded", nil, map[string]any{"code": "VisitCapExceeded", "limit": e.maxVisitsPerNode})
			return finish(StatusFailed, nil, err)
		}

		policy := e.policyFor(rs.CurrentNodeID)
		nodeCtx := ctx
		var cancelTimeout context.CancelFunc
		if policy.Timeout > 0 {
			nodeCtx, cancelTimeout = context.WithTimeout(ctx, policy.Timeout)
		}

		req := NodeRequest{GraphID: rs.GraphID, RunID: rs.RunID, NodeID: node.ID(), Kind: node.Kind()}
		started := time.Now()

		outcome, attempt, err := e.dispatchWithRetry(nodeCtx, node, rs, policy, mwChain, req)
		if cancelTimeout != nil {
			cancelTimeout()
		}
		duration := time.Since(started)

		e.emit(Event{Type: EventNodeFinished, GraphID: rs.GraphID, RunID: rs.RunID, NodeID: node.ID(), Status: string(statusFor(outcome, err)), Err: err, Duration: duration, Attempt: attempt})
		if e.metrics != nil {
			e.metrics.RecordNodeLatency(rs.RunID, node.ID(), duration, string(statusFor(outcome, err)))
		}

		report := NodeReport{NodeID: node.ID(), Output: outcome.Result, Error: err, StartedAt: started, EndedAt: time.Now(), Attempt: attempt}

		if err != nil {
			report.Status = NodeFailed
			rs.VisitedNodes = append(rs.VisitedNodes, report)
			if deps.store != nil && deps.config.SaveOnError {
				cp := newCheckpoint(rs, rs.GraphID, nil, map[string]any{"reason": "error"}, time.Now())
				if saveErr := e.saveCheckpoint(deps, cp); saveErr == nil {
					checkpointID = cp.CheckpointID
				}
			}
			return finish(StatusFailed, nil, err)
		}

		if outcome.Status == NodePaused {
			report.Status = NodePaused
			rs.VisitedNodes = append(rs.VisitedNodes, report)
			rs.Status = StatusWaitingForHuman
			if deps.store != nil {
				cp := newCheckpoint(rs, rs.GraphID, outcome.Pending, nil, time.Now())
				if saveErr := e.saveCheckpoint(deps, cp); saveErr == nil {
					checkpointID = cp.CheckpointID
				}
				if e.metrics != nil {
					e.metrics.IncrementPauses(rs.RunID, node.ID())
				}
			}
			return finish(StatusWaitingForHuman, nil, nil)
		}

		report.Status = NodeSuccess
		rs.VisitedNodes = append(rs.VisitedNodes, report)
		nodesSinceSave++

		if deps.store != nil && shouldCheckpoint(deps.config, nodesSinceSave, time.Since(lastCheckpoint)) {
			cp := newCheckpoint(rs, rs.GraphID, nil, nil, time.Now())
			if saveErr := e.saveCheckpoint(deps, cp); saveErr == nil {
				checkpointID = cp.CheckpointID
				lastCheckpoint = time.Now()
				nodesSinceSave = 0
			}
		}

		dest, hasEdges, matched := evaluateEdges(e.graph.Edges, rs.CurrentNodeID, PredicateInput{
			Result:   outcome.Result,
			StateMap: rs.StateMap,
			Context:  rs.Context,
		})
		if !hasEdges {
			if deps.store != nil {
				_ = deps.store.DeleteByRun(rs.RunID)
			}
			return finish(StatusCompleted, e.outputResult(rs), nil)
		}
		if !matched {
			return finish(StatusFailed, nil, newError(KindNoEdgeMatched, rs.CurrentNodeID, "no outgoing edge matched", nil))
		}
		rs.CurrentNodeID = dest
	}
}

func (e *Engine) saveCheckpoint(deps runDeps, cp Checkpoint) error {
	err := deps.store.Save(cp)
	reason := "periodic"
	if cp.Pending != nil {
		reason = "pause"
	} else if r, ok := cp.Metadata["reason"].(string); ok {
		reason = r
	}
	if e.metrics != nil && err == nil {
		e.metrics.IncrementCheckpoints(cp.RunID, reason)
	}
	if err == nil {
		// Eviction failures are as recoverable as save failures: the run
		// keeps going even if pruning old history didn't happen.
		_ = enforceMaxCheckpoints(deps.store, cp.RunID, deps.config.MaxCheckpointsPerRun)
	}
	// Store outages are recoverable: the run continues even if the
	// snapshot failed to persist.
	return err
}

func (e *Engine) dispatchWithRetry(ctx context.Context, node Node, rs *RunState, policy NodePolicy, mwChain *chain, req NodeRequest) (NodeOutcome, int, error) {
	attempts := policy.Retry.maxAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		e.emit(Event{Type: EventNodeStarted, GraphID: rs.GraphID, RunID: rs.RunID, NodeID: node.ID(), Attempt: attempt})

		nic := &NodeInvocationContext{GraphID: rs.GraphID, RunID: rs.RunID, NodeID: node.ID(), StateMap: rs.StateMap, Context: rs.Context, Costs: e.costs, Metrics: e.metrics}
		outcome, err := mwChain.dispatch(ctx, req, func(ctx context.Context) (NodeOutcome, error) {
			return node.Execute(ctx, nic)
		})
		if err == nil {
			return outcome, attempt, nil
		}
		lastErr = err
		if attempt == attempts || !policy.Retry.retryable(err) {
			return NodeOutcome{}, attempt, err
		}
		if e.metrics != nil {
			e.metrics.IncrementRetries(rs.RunID, node.ID())
		}
		if delay := computeBackoff(policy.Retry, attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return NodeOutcome{}, attempt, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return NodeOutcome{}, attempts, lastErr
}

func (e *Engine) outputResult(rs *RunState) any {
	if e.graph.OutputSelector != nil {
		return e.graph.OutputSelector(rs.StateMap)
	}
	return rs.StateMap[KeyPrevious]
}

func (e *Engine) buildReport(rs *RunState, status Status, result any, err error, checkpointID string, startedAt time.Time) RunReport {
	rs.Status = status
	return RunReport{
		GraphID:      rs.GraphID,
		RunID:        rs.RunID,
		Status:       status,
		Result:       result,
		Duration:     time.Since(startedAt),
		NodeReports:  rs.VisitedNodes,
		Error:        err,
		CheckpointID: checkpointID,
	}
}

func (e *Engine) emit(ev Event) {
	ev.Timestamp = time.Now()
	e.emitter.Emit(ev)
}

func statusFor(outcome NodeOutcome, err error) NodeStatus {
	if err != nil {
		return NodeFailed
	}
	return outcome.Status
}

func stringOrEmpty(v any) string {
	s, _ := v.(string)
	return s
}
