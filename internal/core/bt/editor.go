package bt

import (
	"fmt"
	"slices"

	"github.com/zeusync/btcore/internal/core/observability/log"
)

// The methods in this file are the authoring surface of a tree. None of them
// may run while Evaluate is in progress; they return ErrTreeBusy instead.

// CreateNode instantiates kind, registers the node and returns it.
func (t *Tree) CreateNode(kind Kind, opts ...NodeOption) (*Node, error) {
	if t.evaluating {
		return nil, ErrTreeBusy
	}
	if kind == nil {
		return nil, ErrNilKind
	}
	n := newNode(kind, opts...)
	if _, exists := t.index[n.id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.id)
	}
	t.nodes = append(t.nodes, n)
	t.index[n.id] = n
	t.logger.Debug("node created", log.Stringer("node_id", n.id), log.String("kind", kind.Name()))
	return n, nil
}

// DeleteNode unregisters n. It also severs every edge touching n: the node is
// removed from its parent, its children become detached roots of their own
// subtrees, and it leaves the active set. Deleting the root hands the root slot
// to the first remaining node without restarting the tree. Deleting a node
// that is not registered is a no-op.
func (t *Tree) DeleteNode(n *Node) error {
	if t.evaluating {
		return ErrTreeBusy
	}
	if !t.Contains(n) {
		return nil
	}

	if parent := t.Parent(n); parent != nil {
		parent.removeChild(n)
	}
	for _, c := range t.Children(n) {
		n.removeChild(c)
	}
	n.children = nil
	n.parent = NodeID{}

	if i := slices.Index(t.active, n); i >= 0 {
		active := slices.Clone(t.active)
		t.active = slices.Delete(active, i, i+1)
	}

	i := slices.Index(t.nodes, n)
	t.nodes = slices.Delete(t.nodes, i, i+1)
	delete(t.index, n.id)

	if t.root == n {
		t.root = nil
		if len(t.nodes) > 0 {
			t.root = t.nodes[0]
		}
	}
	t.logger.Debug("node deleted", log.Stringer("node_id", n.id))
	return nil
}

// AddChild appends child to parent's children. A child that already has a
// different parent is moved. Nil arguments are ignored.
func (t *Tree) AddChild(parent, child *Node) error {
	if t.evaluating {
		return ErrTreeBusy
	}
	if parent == nil || child == nil {
		return nil
	}
	if !t.Contains(parent) || !t.Contains(child) {
		return ErrNotMember
	}
	if child.parent == parent.id {
		return nil
	}
	if t.isAncestor(child, parent) {
		return fmt.Errorf("%w: %s under %s", ErrCycle, child, parent)
	}
	if old := t.Parent(child); old != nil {
		old.removeChild(child)
	}
	parent.addChild(child)
	return nil
}

// RemoveChild detaches child from parent. Removing a node that is not a child
// of parent, or passing nil, is a no-op.
func (t *Tree) RemoveChild(parent, child *Node) error {
	if t.evaluating {
		return ErrTreeBusy
	}
	if parent == nil || child == nil {
		return nil
	}
	if !t.Contains(parent) || !t.Contains(child) {
		return ErrNotMember
	}
	parent.removeChild(child)
	return nil
}

// SetRoot designates n as the entry node. The active set is left alone until
// the next ResetMachine.
func (t *Tree) SetRoot(n *Node) error {
	if t.evaluating {
		return ErrTreeBusy
	}
	if !t.Contains(n) {
		return ErrNotMember
	}
	t.root = n
	return nil
}

func (t *Tree) SetPosition(n *Node, p Position) error {
	if !t.Contains(n) {
		return ErrNotMember
	}
	n.position = p
	return nil
}

// isAncestor reports whether a is b or one of b's ancestors.
func (t *Tree) isAncestor(a, b *Node) bool {
	for cur := b; cur != nil; cur = t.Parent(cur) {
		if cur == a {
			return true
		}
	}
	return false
}
