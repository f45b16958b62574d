package stream

// State is the lifecycle state of a streaming session.
type State string

// Session states.
const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
	StateError      State = "error"
)

// Settled reports whether s is a terminal state for the current session.
func (s State) Settled() bool {
	return s == StateStopped || s == StateError
}

// Busy reports whether Start is currently a no-op.
func (s State) Busy() bool {
	return s == StateConnecting || s == StateStreaming
}

func (s State) String() string {
	return string(s)
}
