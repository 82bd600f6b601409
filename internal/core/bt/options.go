package bt

import "github.com/zeusync/btcore/internal/core/observability/log"

// Observer is told about every state transition and active-set swap of a tree.
// It is called synchronously from the evaluation loop and must not edit the tree.
type Observer interface {
	NodeTransition(n *Node, from, to State)
	ActiveSetChanged(active []*Node)
}

type Option func(*Tree)

func WithLogger(l log.Log) Option {
	return func(t *Tree) {
		if l != nil {
			t.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(t *Tree) { t.observer = o }
}

func WithTreeName(name string) Option {
	return func(t *Tree) { t.name = name }
}
