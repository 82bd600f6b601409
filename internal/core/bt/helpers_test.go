package bt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// probe counts hook invocations and lets each test script the outcome.
type probe struct {
	enters, updates, checks, exits int
	exitStates                     []State

	doneAfter int // updates needed before IsExecutionDone reports true
	fail      bool

	enterErr, updateErr, checkErr, exitErr error
	panicOn                                string

	exit func(ctx *Context, final State) (bool, error)
}

func (p *probe) OnEnter(*Context) error {
	p.enters++
	if p.panicOn == "enter" {
		panic("boom")
	}
	return p.enterErr
}

func (p *probe) OnUpdate(ctx *Context, _ float64) error {
	p.updates++
	if p.fail {
		ctx.Fail()
	}
	return p.updateErr
}

func (p *probe) IsExecutionDone(*Context) (bool, error) {
	p.checks++
	if p.checkErr != nil {
		return false, p.checkErr
	}
	return p.updates >= p.doneAfter, nil
}

func (p *probe) OnExit(ctx *Context, final State) (bool, error) {
	p.exits++
	p.exitStates = append(p.exitStates, final)
	if p.exitErr != nil {
		return false, p.exitErr
	}
	if p.exit != nil {
		return p.exit(ctx, final)
	}
	return false, nil
}

func (p *probe) calls() int { return p.enters + p.updates + p.checks + p.exits }

// probeKind always hands out the same probe so tests can inspect it.
func probeKind(p *probe) Kind {
	return NewKind("probe", nil, func() Behavior { return p })
}

func addProbe(t *testing.T, tree *Tree, name string, p *probe) *Node {
	t.Helper()
	n, err := tree.CreateNode(probeKind(p), WithName(name))
	require.NoError(t, err)
	return n
}

type recordingObserver struct {
	transitions []string
	swaps       int
}

func (o *recordingObserver) NodeTransition(n *Node, from, to State) {
	o.transitions = append(o.transitions, n.Name()+":"+from.String()+">"+to.String())
}

func (o *recordingObserver) ActiveSetChanged([]*Node) { o.swaps++ }
