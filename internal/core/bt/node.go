package bt

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
)

// NodeID identifies a node for its whole lifetime. Clones of a tree keep the
// IDs of the template they were copied from.
type NodeID = uuid.UUID

// Position is the authoring coordinate of a node. Evaluation ignores it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is one behavior unit of a tree. Edges are stored as IDs and resolved
// through the owning Tree; only the tree's editing methods change them.
type Node struct {
	id       NodeID
	name     string
	kind     Kind
	behavior Behavior
	state    State
	parent   NodeID
	children []NodeID
	position Position
}

type NodeOption func(*Node)

// WithNodeID assigns a persisted identity instead of a fresh one.
func WithNodeID(id NodeID) NodeOption {
	return func(n *Node) { n.id = id }
}

func WithName(name string) NodeOption {
	return func(n *Node) { n.name = name }
}

func WithPosition(p Position) NodeOption {
	return func(n *Node) { n.position = p }
}

func newNode(k Kind, opts ...NodeOption) *Node {
	n := &Node{
		id:       uuid.New(),
		name:     k.Name(),
		kind:     k,
		behavior: k.New(),
		state:    StateWaiting,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Node) ID() NodeID         { return n.id }
func (n *Node) Name() string       { return n.name }
func (n *Node) Kind() Kind         { return n.kind }
func (n *Node) Behavior() Behavior { return n.behavior }
func (n *Node) State() State       { return n.state }
func (n *Node) Parent() NodeID     { return n.parent }
func (n *Node) Position() Position { return n.position }

// HasParent reports whether the node is currently attached below another node.
func (n *Node) HasParent() bool { return n.parent != uuid.Nil }

// Children returns a copy of the ordered child IDs.
func (n *Node) Children() []NodeID { return slices.Clone(n.children) }

func (n *Node) KindName() string {
	if n.kind == nil {
		return ""
	}
	return n.kind.Name()
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.name, n.id)
}

// Reset puts the node back to Waiting whatever it was doing.
func (n *Node) Reset() {
	n.state = StateWaiting
}

// Execute advances the node by one step of its state machine. tree must be the
// tree that owns the node; delta is the elapsed simulation time in seconds.
//
// A failing hook, or a panicking one, leaves the node in Failure and the error
// is returned as a Faulted result for the caller to propagate.
func (n *Node) Execute(executor any, tree *Tree, delta float64) (res Result) {
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return faulted(fmt.Errorf("%w: %v", ErrInvalidDelta, delta))
	}
	if tree == nil {
		return faulted(ErrNoTree)
	}
	if !tree.Contains(n) {
		return faulted(fmt.Errorf("%w: %s", ErrNotMember, n))
	}
	if n.state == StateDone {
		return continuing()
	}

	ctx := &Context{Executor: executor, Tree: tree, Node: n}
	defer func() {
		if r := recover(); r != nil {
			res = n.fault(tree, fmt.Errorf("%w: %v", ErrNodePanic, r))
		}
	}()

	switch n.state {
	case StateWaiting:
		n.transition(tree, StateRunning)
		if err := n.behavior.OnEnter(ctx); err != nil {
			return n.fault(tree, err)
		}
		fallthrough
	case StateRunning:
		if err := n.behavior.OnUpdate(ctx, delta); err != nil {
			return n.fault(tree, err)
		}
		if ctx.failed {
			n.transition(tree, StateFailure)
			return continuing()
		}
		done, err := n.behavior.IsExecutionDone(ctx)
		if err != nil {
			return n.fault(tree, err)
		}
		if done {
			n.transition(tree, StateSuccess)
		}
		return continuing()
	case StateSuccess, StateFailure:
		final := n.state
		generation := tree.generation
		// Done is set first so an exit that re-activates this node leaves it Waiting.
		n.transition(tree, StateDone)
		changed, err := n.behavior.OnExit(ctx, final)
		if err != nil {
			return n.fault(tree, err)
		}
		if changed || tree.generation != generation {
			return structureChanged()
		}
		return continuing()
	default:
		return n.fault(tree, fmt.Errorf("invalid state %s", n.state))
	}
}

func (n *Node) fault(tree *Tree, err error) Result {
	during := n.state
	n.transition(tree, StateFailure)
	return faulted(&NodeError{
		NodeID: n.id,
		Name:   n.name,
		Kind:   n.KindName(),
		State:  during,
		Err:    err,
	})
}

func (n *Node) transition(tree *Tree, to State) {
	from := n.state
	n.state = to
	if tree != nil && tree.observer != nil && from != to {
		tree.observer.NodeTransition(n, from, to)
	}
}

// addChild and removeChild only touch the two nodes involved; the tree checks
// membership, cycles and re-parenting before calling them.
func (n *Node) addChild(child *Node) {
	child.parent = n.id
	n.children = append(n.children, child.id)
}

func (n *Node) removeChild(child *Node) bool {
	i := slices.Index(n.children, child.id)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	if child.parent == n.id {
		child.parent = uuid.Nil
	}
	return true
}
