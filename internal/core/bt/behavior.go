package bt

import (
	"maps"

	"github.com/zeusync/btcore/internal/core/observability/log"
)

// Behavior is implemented by every concrete node kind. A node owns exactly one
// Behavior instance, so implementations may keep per-activation state in their
// own fields and reinitialise it in OnEnter.
type Behavior interface {
	// OnEnter runs once when the node leaves Waiting.
	OnEnter(ctx *Context) error
	// OnUpdate runs on every tick while the node is Running, including the
	// tick it was entered on.
	OnUpdate(ctx *Context, delta float64) error
	// IsExecutionDone is checked after each update; true moves the node to Success.
	IsExecutionDone(ctx *Context) (bool, error)
	// OnExit runs when a finished node is executed again. It is the only hook
	// allowed to change the tree's active set and reports whether it did.
	OnExit(ctx *Context, final State) (bool, error)
}

// Base gives node kinds no-op hooks to embed.
type Base struct{}

func (Base) OnEnter(*Context) error                     { return nil }
func (Base) OnUpdate(*Context, float64) error           { return nil }
func (Base) IsExecutionDone(*Context) (bool, error)     { return true, nil }
func (Base) OnExit(ctx *Context, s State) (bool, error) { return ExitToChildren(ctx, s) }

// Kind is a named node factory. Params are kept so templates can be saved back.
type Kind interface {
	Name() string
	Params() map[string]any
	New() Behavior
}

type kind struct {
	name   string
	params map[string]any
	fn     func() Behavior
}

// NewKind builds a Kind from a constructor. fn must return a new Behavior on each call.
func NewKind(name string, params map[string]any, fn func() Behavior) Kind {
	return &kind{name: name, params: maps.Clone(params), fn: fn}
}

func (k *kind) Name() string           { return k.name }
func (k *kind) Params() map[string]any { return maps.Clone(k.params) }
func (k *kind) New() Behavior          { return k.fn() }

// Context is handed to every hook of a single Execute call.
type Context struct {
	// Executor is the opaque identity ticking the tree.
	Executor any
	Tree     *Tree
	Node     *Node

	logger log.Log
	failed bool
}

// Logger returns a logger scoped to the node being executed.
func (c *Context) Logger() log.Log {
	if c.logger == nil {
		c.logger = c.Tree.logger.With(
			log.Stringer("node_id", c.Node.id),
			log.String("node", c.Node.name),
			log.String("kind", c.Node.KindName()),
		)
	}
	return c.logger
}

// Children resolves the node's children in order.
func (c *Context) Children() []*Node { return c.Tree.Children(c.Node) }

// Fail makes the node finish as Failure at the end of the current update.
func (c *Context) Fail() { c.failed = true }

// ExitToChildren activates the node's children after a Success and restarts
// the tree from its root otherwise, or when there are no children.
func ExitToChildren(ctx *Context, final State) (bool, error) {
	children := ctx.Children()
	if final == StateSuccess && len(children) > 0 {
		ctx.Tree.SetCurrentNodes(children...)
		return true, nil
	}
	ctx.Tree.ResetMachine()
	return true, nil
}
