package mqtt

// State is the client's connection state.
//
// Transitions are owned by Connect, Disconnect and the run loop's
// termination path; request operations only read it.
type State int

const (
	// StateDisconnected is the initial and terminal state.
	StateDisconnected State = iota

	// StateConnecting covers the CONNECT/CONNACK handshake.
	StateConnecting

	// StateConnected is the only state in which request operations are
	// accepted.
	StateConnected

	// StateDisconnecting covers the teardown sweep: pending requests are
	// being drained and the message channel closed.
	StateDisconnecting
)

// String returns a human-readable state name for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}
