// Package metrics exports scheduler activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/btcore/internal/core/bt"
)

const namespace = "btcore"

// Metrics holds the collectors. All methods are safe on a nil *Metrics, which
// turns metrics off.
type Metrics struct {
	transitions      *prometheus.CounterVec
	structureChanges *prometheus.CounterVec
	faults           *prometheus.CounterVec
	ticks            prometheus.Counter
	agents           prometheus.Gauge
	tickDuration     prometheus.Histogram
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_transitions_total",
			Help:      "Node state transitions by tree and target state.",
		}, []string{"tree", "state"}),
		structureChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "active_set_changes_total",
			Help:      "Active set replacements by tree.",
		}, []string{"tree"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Node faults surfaced by agent ticks.",
		}, []string{"tree"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manager_ticks_total",
			Help:      "Completed manager frames.",
		}),
		agents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents",
			Help:      "Agents currently managed.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "manager_tick_duration_seconds",
			Help:      "Wall time of a manager frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.structureChanges, m.faults, m.ticks, m.agents, m.tickDuration)
	}
	return m
}

// TreeObserver returns a bt.Observer that counts under the given tree label.
// Use the template name, not the agent ID, to keep label cardinality bounded.
func (m *Metrics) TreeObserver(tree string) bt.Observer {
	if m == nil {
		return nil
	}
	return &treeObserver{m: m, tree: tree}
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) Fault(tree string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(tree).Inc()
}

func (m *Metrics) SetAgents(n int) {
	if m == nil {
		return
	}
	m.agents.Set(float64(n))
}

type treeObserver struct {
	m    *Metrics
	tree string
}

func (o *treeObserver) NodeTransition(_ *bt.Node, _, to bt.State) {
	o.m.transitions.WithLabelValues(o.tree, to.String()).Inc()
}

func (o *treeObserver) ActiveSetChanged([]*bt.Node) {
	o.m.structureChanges.WithLabelValues(o.tree).Inc()
}
