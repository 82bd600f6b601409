package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/btcore/internal/core/blackboard"
	"github.com/zeusync/btcore/internal/core/bt"
	"github.com/zeusync/btcore/internal/core/bt/nodes"
	"github.com/zeusync/btcore/internal/core/events/bus"
	"github.com/zeusync/btcore/internal/core/observability/log"
	"github.com/zeusync/btcore/internal/core/observability/metrics"
)

var errBoom = errors.New("boom")

// counter never finishes; it bumps "ticks" on its agent's blackboard and
// faults while "boom" is set.
type counter struct{ bt.Base }

func (counter) OnUpdate(ctx *bt.Context, _ float64) error {
	bb := ctx.Executor.(nodes.BlackboardProvider).Blackboard()
	if _, ok := bb.Get("boom"); ok {
		return errBoom
	}
	n, _ := blackboard.Float(bb, "ticks")
	bb.Set("ticks", n+1)
	return nil
}

func (counter) IsExecutionDone(*bt.Context) (bool, error) { return false, nil }

func counterTree(t *testing.T) *bt.Tree {
	t.Helper()
	tree := bt.NewTree(bt.WithTreeName("counter"))
	_, err := tree.CreateNode(bt.NewKind("counter", nil, func() bt.Behavior { return counter{} }))
	require.NoError(t, err)
	return tree
}

func ticks(a *Agent) float64 {
	n, _ := blackboard.Float(a.Blackboard(), "ticks")
	return n
}

func TestSpawnClonesTemplate(t *testing.T) {
	events := bus.New()
	var seen []string
	events.Subscribe(bus.Wildcard, func(e bus.Event) error {
		seen = append(seen, e.Type+":"+e.Data.(Event).Name)
		return nil
	})
	m := NewManager(WithBus(events), WithBlackboard(map[string]any{"team": "red"}))
	template := counterTree(t)

	a, err := m.Spawn("guard", template)
	require.NoError(t, err)
	b, err := m.Spawn("scout", template)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotSame(t, a.Tree(), b.Tree())
	assert.NotSame(t, template, a.Tree())
	assert.Equal(t, "counter", a.Tree().Name())
	assert.Contains(t, a.String(), "guard#")
	v, _ := a.Blackboard().Get("team")
	assert.Equal(t, "red", v)

	a.Blackboard().Set("team", "blue")
	v, _ = b.Blackboard().Get("team")
	assert.Equal(t, "red", v, "blackboards are per agent")

	got, ok := m.Get(a.ID())
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 2, m.Len())
	all := m.Agents()
	require.Len(t, all, 2)
	assert.Less(t, all[0].ID(), all[1].ID())

	assert.True(t, m.Despawn(a.ID()))
	assert.False(t, m.Despawn(a.ID()))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []string{"agent.spawned:guard", "agent.spawned:scout", "agent.despawned:guard"}, seen)

	_, err = m.Spawn("ghost", nil)
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestTickAdvancesEveryAgentOnce(t *testing.T) {
	m := NewManager(WithWorkers(4))
	template := counterTree(t)
	for range 25 {
		_, err := m.Spawn("npc", template)
		require.NoError(t, err)
	}

	for range 3 {
		require.NoError(t, m.Tick(context.Background(), 0.1))
	}
	for _, a := range m.Agents() {
		assert.Equal(t, 3.0, ticks(a), a.String())
	}
	assert.Equal(t, uint64(3), m.Frames())
}

func TestTickRejectsInvalidDelta(t *testing.T) {
	m := NewManager()
	assert.ErrorIs(t, m.Tick(context.Background(), -1), bt.ErrInvalidDelta)
}

func TestFaultAbortReturnsFirstFault(t *testing.T) {
	m := NewManager(WithWorkers(1), WithFaultPolicy(FaultAbort))
	template := counterTree(t)
	bad, err := m.Spawn("bad", template)
	require.NoError(t, err)
	_, err = m.Spawn("good", template)
	require.NoError(t, err)
	bad.Blackboard().Set("boom", true)

	err = m.Tick(context.Background(), 0.1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	var nodeErr *bt.NodeError
	assert.ErrorAs(t, err, &nodeErr)
	assert.Contains(t, err.Error(), bad.String())
}

func TestFaultIsolateKeepsTicking(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	events := bus.New()
	var faults []Event
	events.Subscribe(EventFault, func(e bus.Event) error {
		faults = append(faults, e.Data.(Event))
		return nil
	})
	m := NewManager(
		WithWorkers(2),
		WithFaultPolicy(FaultIsolate),
		WithBus(events),
		WithLogger(log.FromZap(zap.New(core))),
	)
	template := counterTree(t)
	bad, err := m.Spawn("bad", template)
	require.NoError(t, err)
	good, err := m.Spawn("good", template)
	require.NoError(t, err)
	bad.Blackboard().Set("boom", true)

	require.NoError(t, m.Tick(context.Background(), 0.1))
	assert.Equal(t, 1.0, ticks(good))
	require.Len(t, faults, 1)
	assert.Equal(t, bad.ID(), faults[0].ID)
	assert.ErrorIs(t, faults[0].Err, errBoom)

	entries := logs.FilterMessage("agent faulted").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "isolate", entries[0].ContextMap()["policy"])

	// The faulted tree restarts once the flag clears.
	bad.Blackboard().Delete("boom")
	require.NoError(t, m.Tick(context.Background(), 0.1))
	require.NoError(t, m.Tick(context.Background(), 0.1))
	assert.Equal(t, 1.0, ticks(bad))
}

func TestRestart(t *testing.T) {
	m := NewManager()
	a, err := m.Spawn("npc", counterTree(t))
	require.NoError(t, err)
	require.NoError(t, a.Tick(0.1))
	root := a.Tree().Root()
	require.Equal(t, bt.StateRunning, root.State())

	a.Restart()
	assert.Equal(t, bt.StateWaiting, root.State())
	assert.Equal(t, []*bt.Node{root}, a.Tree().ActiveNodes())
}

func TestRunStopsOnCancel(t *testing.T) {
	m := NewManager()
	_, err := m.Spawn("npc", counterTree(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx, time.Millisecond, 0.016))
	assert.Positive(t, m.Frames())

	assert.Error(t, m.Run(context.Background(), 0, 0.016))
}

func TestRunReturnsFrameError(t *testing.T) {
	m := NewManager()
	a, err := m.Spawn("npc", counterTree(t))
	require.NoError(t, err)
	a.Blackboard().Set("boom", true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, m.Run(ctx, time.Millisecond, 0), errBoom)
}

func TestManagerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(WithMetrics(metrics.New(reg)))
	template := counterTree(t)
	a, err := m.Spawn("a", template)
	require.NoError(t, err)
	_, err = m.Spawn("b", template)
	require.NoError(t, err)
	m.Despawn(a.ID())
	require.NoError(t, m.Tick(context.Background(), 0.1))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetGauge() != nil:
				values[f.GetName()] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[f.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["btcore_agents"])
	assert.Equal(t, 1.0, values["btcore_manager_ticks_total"])
	assert.Equal(t, 1.0, values["btcore_active_set_changes_total"], "lazy start of the one live agent")
}

func TestParseFaultPolicy(t *testing.T) {
	p, err := ParseFaultPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FaultAbort, p)
	p, err = ParseFaultPolicy(" Isolate ")
	require.NoError(t, err)
	assert.Equal(t, FaultIsolate, p)
	_, err = ParseFaultPolicy("retry")
	assert.Error(t, err)
}
