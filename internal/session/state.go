package session

// State represents where a [Session] is in its connection lifecycle.
type State int

const (
	// StateDisconnected is the idle state: no audio device held, no remote
	// session open. Both the initial and the post-hangup state.
	StateDisconnected State = iota

	// StateConnecting covers the connect sequence, from audio device
	// acquisition until the remote session acknowledges setup.
	StateConnecting

	// StateConnected means both audio pumps are running against a live
	// remote session.
	StateConnected

	// StateError is reached when a connect attempt fails or a live session
	// is torn down by a transport fault. Connect may be retried from here.
	StateError
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
