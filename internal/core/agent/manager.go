package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/btcore/internal/core/blackboard"
	"github.com/zeusync/btcore/internal/core/bt"
	"github.com/zeusync/btcore/internal/core/events/bus"
	"github.com/zeusync/btcore/internal/core/observability/log"
	"github.com/zeusync/btcore/internal/core/observability/metrics"
)

const (
	EventSpawned   = "agent.spawned"
	EventDespawned = "agent.despawned"
	EventFault     = "agent.fault"
)

var ErrNoTemplate = errors.New("agent template tree is nil")

// FaultPolicy decides what a node fault does to the rest of a frame.
type FaultPolicy string

const (
	// FaultAbort stops the frame and returns the first fault.
	FaultAbort FaultPolicy = "abort"
	// FaultIsolate logs and publishes the fault and keeps ticking other agents.
	FaultIsolate FaultPolicy = "isolate"
)

func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch p := FaultPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FaultAbort, nil
	case FaultAbort, FaultIsolate:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fault policy %q", s)
	}
}

// Event is the payload of every bus event published by the manager.
type Event struct {
	ID   string
	Name string
	Tree string
	Err  error
}

type Option func(*Manager)

// WithWorkers sets how many shards tick in parallel. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(m *Manager) { m.workers = max(n, 1) }
}

func WithFaultPolicy(p FaultPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithLogger(l log.Log) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithBus(b bus.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithBlackboard seeds every new agent's blackboard with a copy of initial.
func WithBlackboard(initial map[string]any) Option {
	return func(m *Manager) { m.seed = maps.Clone(initial) }
}

// Manager owns a set of agents and ticks them frame by frame. Agents are
// split into shards by a hash of their ID; shards run in parallel while each
// shard ticks its agents in ID order, so one tree is never touched by two
// goroutines at once.
type Manager struct {
	mu     sync.RWMutex
	agents map[string]*Agent

	frame  sync.Mutex
	frames atomic.Uint64

	workers int
	policy  FaultPolicy
	seed    map[string]any
	logger  log.Log
	bus     bus.Bus
	metrics *metrics.Metrics
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		agents:  make(map[string]*Agent),
		workers: 1,
		policy:  FaultAbort,
		logger:  log.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Spawn creates an agent running a private clone of template.
func (m *Manager) Spawn(name string, template *bt.Tree) (*Agent, error) {
	if template == nil {
		return nil, ErrNoTemplate
	}
	id := uuid.NewString()
	a := &Agent{
		id:   id,
		name: name,
		bb:   blackboard.New(m.seed),
	}
	a.tree = template.Clone(
		bt.WithLogger(m.logger.With(log.String("agent_id", id), log.String("agent", name))),
		bt.WithObserver(m.metrics.TreeObserver(template.Name())),
	)

	m.mu.Lock()
	m.agents[id] = a
	n := len(m.agents)
	m.mu.Unlock()

	m.metrics.SetAgents(n)
	m.logger.Debug("agent spawned", log.String("agent_id", id), log.String("agent", name), log.String("tree", template.Name()))
	m.publish(EventSpawned, Event{ID: id, Name: name, Tree: template.Name()})
	return a, nil
}

// Despawn removes the agent and reports whether it existed.
func (m *Manager) Despawn(id string) bool {
	m.mu.Lock()
	a, ok := m.agents[id]
	delete(m.agents, id)
	n := len(m.agents)
	m.mu.Unlock()
	if !ok {
		return false
	}

	m.metrics.SetAgents(n)
	m.logger.Debug("agent despawned", log.String("agent_id", id))
	m.publish(EventDespawned, Event{ID: id, Name: a.name, Tree: a.tree.Name()})
	return true
}

func (m *Manager) Get(id string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

// Agents returns a snapshot sorted by ID.
func (m *Manager) Agents() []*Agent {
	m.mu.RLock()
	out := slices.Collect(maps.Values(m.agents))
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Agent) int { return strings.Compare(a.id, b.id) })
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agents)
}

// Frames returns how many frames Tick has completed.
func (m *Manager) Frames() uint64 { return m.frames.Load() }

func (m *Manager) shards() [][]*Agent {
	shards := make([][]*Agent, m.workers)
	for _, a := range m.Agents() {
		i := xxhash.Sum64String(a.id) % uint64(m.workers)
		shards[i] = append(shards[i], a)
	}
	return shards
}

// Tick advances every agent by delta seconds. Frames never overlap.
func (m *Manager) Tick(ctx context.Context, delta float64) error {
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("%w: %v", bt.ErrInvalidDelta, delta)
	}
	m.frame.Lock()
	defer m.frame.Unlock()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, shard := range m.shards() {
		if len(shard) == 0 {
			continue
		}
		g.Go(func() error {
			for _, a := range shard {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := a.Tick(delta); err != nil && !m.fault(a, err) {
					return fmt.Errorf("agent %s: %w", a, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	m.frames.Add(1)
	m.metrics.ObserveTick(time.Since(start))
	return err
}

// fault records a node fault and reports whether the frame may continue.
func (m *Manager) fault(a *Agent, err error) bool {
	m.metrics.Fault(a.tree.Name())
	m.logger.Error("agent faulted",
		log.String("agent_id", a.id),
		log.String("agent", a.name),
		log.String("policy", string(m.policy)),
		log.Error(err),
	)
	m.publish(EventFault, Event{ID: a.id, Name: a.name, Tree: a.tree.Name(), Err: err})
	return m.policy == FaultIsolate
}

func (m *Manager) publish(typ string, e Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(bus.NewEvent(typ, "agent.manager", e)); err != nil {
		m.logger.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}

// Run ticks every interval until ctx is done. A delta of zero uses the
// measured wall time between frames. Cancellation is a normal stop and
// returns nil; a frame error ends the loop and is returned.
func (m *Manager) Run(ctx context.Context, interval time.Duration, delta float64) error {
	if interval <= 0 {
		return fmt.Errorf("run interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			step := delta
			if step == 0 {
				step = now.Sub(last).Seconds()
			}
			last = now
			if err := m.Tick(ctx, step); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
