// Package agent runs many independent behavior-tree instances, one per
// simulated entity, on a fixed-step frame loop.
package agent

import (
	"sync"

	"github.com/zeusync/btcore/internal/core/blackboard"
	"github.com/zeusync/btcore/internal/core/bt"
)

// Agent owns a private clone of a template tree and the blackboard its nodes
// read and write. It is the executor handed to every node hook.
type Agent struct {
	mu   sync.Mutex
	id   string
	name string
	tree *bt.Tree
	bb   blackboard.Blackboard
}

func (a *Agent) ID() string                        { return a.id }
func (a *Agent) Name() string                      { return a.name }
func (a *Agent) Tree() *bt.Tree                    { return a.tree }
func (a *Agent) Blackboard() blackboard.Blackboard { return a.bb }

func (a *Agent) String() string {
	short := a.id
	if len(short) > 8 {
		short = short[:8]
	}
	return a.name + "#" + short
}

// Tick evaluates the agent's tree once.
func (a *Agent) Tick(delta float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tree.Evaluate(a, delta)
}

// Restart sends the tree back to its root.
func (a *Agent) Restart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tree.ResetMachine()
}
