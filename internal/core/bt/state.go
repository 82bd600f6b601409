package bt

import "fmt"

// State is the lifecycle position of a single node.
type State uint8

const (
	StateWaiting State = iota
	StateRunning
	StateSuccess
	StateFailure
	StateDone
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "Waiting"
	case StateRunning:
		return "Running"
	case StateSuccess:
		return "Success"
	case StateFailure:
		return "Failure"
	case StateDone:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal reports whether the node finished its work and is waiting for its exit.
func (s State) Terminal() bool { return s == StateSuccess || s == StateFailure }
