package bt

import (
	"fmt"
	"math"
	"slices"

	"github.com/zeusync/btcore/internal/core/observability/log"
)

// Tree owns a node arena and the set of nodes that run on the next tick.
//
// A Tree is not safe for concurrent use. Every simulation instance ticks its
// own Clone.
type Tree struct {
	name   string
	root   *Node
	nodes  []*Node
	index  map[NodeID]*Node
	active []*Node

	// generation changes on every active-set swap.
	generation uint64
	evaluating bool

	logger   log.Log
	observer Observer
}

// NewTree returns an empty tree.
func NewTree(opts ...Option) *Tree {
	t := &Tree{
		index:  make(map[NodeID]*Node),
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tree) Name() string { return t.name }

// Root returns the canonical entry node, or nil when it has not been resolved yet.
func (t *Tree) Root() *Node { return t.root }

// Nodes returns every registered node in creation order.
func (t *Tree) Nodes() []*Node { return slices.Clone(t.nodes) }

func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) Node(id NodeID) (*Node, bool) {
	n, ok := t.index[id]
	return n, ok
}

// Contains reports whether n is registered in this tree.
func (t *Tree) Contains(n *Node) bool {
	if n == nil {
		return false
	}
	m, ok := t.index[n.id]
	return ok && m == n
}

// ActiveNodes returns a copy of the current active set.
func (t *Tree) ActiveNodes() []*Node { return slices.Clone(t.active) }

// Children resolves the children of n in order.
func (t *Tree) Children(n *Node) []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.children))
	for _, id := range n.children {
		if c, ok := t.index[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Parent resolves the parent of n, nil for detached nodes.
func (t *Tree) Parent(n *Node) *Node {
	if n == nil || !n.HasParent() {
		return nil
	}
	return t.index[n.parent]
}

// Evaluate runs one tick. Active nodes execute in order until one of them
// replaces the active set; the remaining nodes wait for the next tick.
//
// A fault in any node aborts the tick and is returned unchanged apart from
// wrapping; the faulted node is left in Failure. A hook calling Evaluate on
// its own tree gets ErrTreeBusy.
func (t *Tree) Evaluate(executor any, delta float64) error {
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDelta, delta)
	}
	if t.evaluating {
		return ErrTreeBusy
	}
	if t.root == nil || t.generation == 0 {
		// Lazy start: resolve the root once, or activate an explicitly set
		// root that was never installed.
		if len(t.nodes) == 0 {
			return nil
		}
		t.ResetMachine()
	}

	t.evaluating = true
	defer func() { t.evaluating = false }()

	for _, n := range t.active {
		if n == nil {
			continue
		}
		res := n.Execute(executor, t, delta)
		switch res.Kind {
		case Faulted:
			t.logger.Error("node faulted",
				log.Stringer("node_id", n.id),
				log.String("node", n.name),
				log.Any("executor", executor),
				log.Error(res.Err),
			)
			return fmt.Errorf("evaluate %q: %w", t.name, res.Err)
		case StructureChanged:
			t.logger.Debug("active set replaced",
				log.Stringer("by", n.id),
				log.Int("active", len(t.active)),
				log.Uint64("generation", t.generation),
			)
			return nil
		}
	}
	return nil
}

// SetCurrentNodes resets every currently active node, then installs nodes as
// the new active set. Nil entries, foreign nodes and duplicates are dropped.
// Installed nodes are reset too, so a node re-entering the set starts over.
func (t *Tree) SetCurrentNodes(nodes ...*Node) {
	for _, n := range t.active {
		if n != nil {
			n.Reset()
		}
	}

	// A fresh slice keeps an in-flight iteration over the old set stable.
	next := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if !t.Contains(n) {
			if n != nil {
				t.logger.Warn("ignoring foreign node in active set", log.Stringer("node_id", n.id))
			}
			continue
		}
		if slices.Contains(next, n) {
			continue
		}
		n.Reset()
		next = append(next, n)
	}
	t.active = next
	t.generation++

	if t.observer != nil {
		t.observer.ActiveSetChanged(slices.Clone(next))
	}
}

// ResetMachine restarts the tree from its root. An unset root resolves to the
// first registered node; a tree without nodes ends up with an empty active set.
func (t *Tree) ResetMachine() {
	if t.root == nil && len(t.nodes) > 0 {
		t.root = t.nodes[0]
	}
	if t.root == nil {
		t.SetCurrentNodes()
		return
	}
	t.SetCurrentNodes(t.root)
}

// Clone returns an independent runtime copy: same node IDs, names, positions,
// edges, root and active-set membership, with fresh behaviors and every node
// Waiting. Options override the copied logger and observer.
func (t *Tree) Clone(opts ...Option) *Tree {
	c := &Tree{
		name:       t.name,
		generation: t.generation,
		nodes:      make([]*Node, 0, len(t.nodes)),
		index:      make(map[NodeID]*Node, len(t.nodes)),
		logger:     t.logger,
		observer:   t.observer,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, n := range t.nodes {
		cp := &Node{
			id:       n.id,
			name:     n.name,
			kind:     n.kind,
			behavior: n.kind.New(),
			state:    StateWaiting,
			parent:   n.parent,
			children: slices.Clone(n.children),
			position: n.position,
		}
		c.nodes = append(c.nodes, cp)
		c.index[cp.id] = cp
	}
	if t.root != nil {
		c.root = c.index[t.root.id]
	}
	c.active = make([]*Node, 0, len(t.active))
	for _, n := range t.active {
		if n == nil {
			continue
		}
		if cp, ok := c.index[n.id]; ok {
			c.active = append(c.active, cp)
		}
	}
	return c
}
