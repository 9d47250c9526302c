package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible instrumentation for graph runs.
// All metrics are namespaced "agentgraph_".
//
//  1. inflight_branches (gauge): branches currently executing inside a
//     parallel node. Labels: run_id, parallel_node_id.
//  2. node_latency_ms (histogram): node dispatch duration. Labels:
//     run_id, node_id, status.
//  3. retries_total (counter): retry attempts. Labels: run_id, node_id.
//  4. pauses_total (counter): human-in-the-loop pauses. Labels: run_id,
//     node_id.
//  5. checkpoints_total (counter): checkpoints written. Labels: run_id,
//     reason (periodic/pause/error).
type Metrics struct {
	inflightBranches *prometheus.GaugeVec
	nodeLatency      *prometheus.HistogramVec
	retries          *prometheus.CounterVec
	pauses           *prometheus.CounterVec
	checkpoints      *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics registers all graph metrics with registry. A nil registry
// uses prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		inflightBranches: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agentgraph",
			Name:      "inflight_branches",
			Help:      "Branches currently executing inside a parallel node",
		}, []string{"run_id", "parallel_node_id"}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentgraph",
			Name:      "node_latency_ms",
			Help:      "Node dispatch duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"run_id", "node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "retries_total",
			Help:      "Cumulative retry attempts per node",
		}, []string{"run_id", "node_id"}),
		pauses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "pauses_total",
			Help:      "Human-in-the-loop pauses",
		}, []string{"run_id", "node_id"}),
		checkpoints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "checkpoints_total",
			Help:      "Checkpoints written, by trigger reason",
		}, []string{"run_id", "reason"}),
	}
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

func (m *Metrics) RecordNodeLatency(runID, nodeID string, latency time.Duration, status string) {
	if !m.isEnabled() {
		return
	}
	m.nodeLatency.WithLabelValues(runID, nodeID, status).Observe(float64(latency.Milliseconds()))
}

func (m *Metrics) IncrementRetries(runID, nodeID string) {
	if !m.isEnabled() {
		return
	}
	m.retries.WithLabelValues(runID, nodeID).Inc()
}

func (m *Metrics) SetInflightBranches(runID, parallelNodeID string, count int) {
	if !m.isEnabled() {
		return
	}
	m.inflightBranches.WithLabelValues(runID, parallelNodeID).Set(float64(count))
}

func (m *Metrics) IncrementPauses(runID, nodeID string) {
	if !m.isEnabled() {
		return
	}
	m.pauses.WithLabelValues(runID, nodeID).Inc()
}

func (m *Metrics) IncrementCheckpoints(runID, reason string) {
	if !m.isEnabled() {
		return
	}
	m.checkpoints.WithLabelValues(runID, reason).Inc()
}

// Disable turns off recording without unregistering collectors, useful in
// tests that construct an Engine but don't want metric side effects.
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
