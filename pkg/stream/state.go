package stream

// State is a session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateStreaming
	StateCompleted
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateClosed || s == StateErrored
}
