package agent

// State is a state of the agent state machine.
type State int

const (
	StateAwaitingModel State = iota
	StateAwaitingTools
	StateDone
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateAwaitingTools:
		return "awaiting_tools"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a loop execution.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }
