package bt

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDelta  = errors.New("bt: delta must be a non-negative number")
	ErrNilKind       = errors.New("bt: node kind is nil")
	ErrTreeBusy      = errors.New("bt: tree is being evaluated")
	ErrNotMember     = errors.New("bt: node does not belong to this tree")
	ErrCycle         = errors.New("bt: edge would create a cycle")
	ErrDuplicateNode = errors.New("bt: node id already registered")
	ErrUnknownKind   = errors.New("bt: unknown node kind")
	ErrNodePanic     = errors.New("bt: node panicked")
	ErrNoTree        = errors.New("bt: node executed without a tree")
)

// NodeError is returned when one of a node's hooks fails during Execute.
type NodeError struct {
	NodeID NodeID
	Name   string
	Kind   string
	State  State
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q (%s, %s) faulted while %s: %v", e.Name, e.Kind, e.NodeID, e.State, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
