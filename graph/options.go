package graph

// Engine bundles a validated Graph with its runtime configuration: node
// policies, middleware chain, checkpoint behavior, and the observability
// hooks it reports through. Configuration is applied via functional
// options.
type Engine struct {
	graph            *Graph
	defaultPolicy    NodePolicy
	nodePolicies     map[string]NodePolicy
	middlewares      []Middleware
	checkpointConfig CheckpointConfig
	maxVisitsPerNode int
	emitter          Emitter
	metrics          *Metrics
	costs            *CostTracker
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithDefaultPolicy sets the NodePolicy applied to any node without a
// more specific override from WithNodePolicy.
func WithDefaultPolicy(p NodePolicy) Option {
	return func(e *Engine) { e.defaultPolicy = p }
}

// WithNodePolicy overrides the policy for a single node ID.
func WithNodePolicy(nodeID string, p NodePolicy) Option {
	return func(e *Engine) {
		if e.nodePolicies == nil {
			e.nodePolicies = map[string]NodePolicy{}
		}
		e.nodePolicies[nodeID] = p
	}
}

// WithMiddleware appends middleware to the chain in call order.
func WithMiddleware(mws ...Middleware) Option {
	return func(e *Engine) { e.middlewares = append(e.middlewares, mws...) }
}

// WithCheckpointConfig sets the periodic/error checkpointing behavior
// used by Resume and ResumeWithHumanResponse; RunWithCheckpoint takes its
// CheckpointConfig as an argument instead.
func WithCheckpointConfig(cfg CheckpointConfig) Option {
	return func(e *Engine) { e.checkpointConfig = cfg }
}

// WithMaxVisitsPerNode bounds how many times a single node may be visited
// within one run, guarding cyclic graphs against runaway loops. Zero
// means unbounded.
func WithMaxVisitsPerNode(n int) Option {
	return func(e *Engine) { e.maxVisitsPerNode = n }
}

// WithEmitter attaches an observability sink for run and node events.
func WithEmitter(em Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithMetrics attaches a Prometheus metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCostTracker attaches a CostTracker fed by agent-node dispatch from
// the token-usage metadata provider adapters attach to their responses.
func WithCostTracker(ct *CostTracker) Option {
	return func(e *Engine) { e.costs = ct }
}

const defaultMaxVisitsPerNode = 10_000

// NewEngine builds an Engine around an already-validated Graph.
func NewEngine(g *Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:            g,
		defaultPolicy:    NodePolicy{Retry: NoRetry},
		checkpointConfig: DefaultCheckpointConfig(),
		maxVisitsPerNode: defaultMaxVisitsPerNode,
		emitter:          NullEmitter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) policyFor(nodeID string) NodePolicy {
	if p, ok := e.nodePolicies[nodeID]; ok {
		return p
	}
	return e.defaultPolicy
}
