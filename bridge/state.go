package bridge

// State is the federation connection state.
type State int32

// Connection states. The numeric values feed the connection_state gauge.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateJoining
	StateJoined
	StateResigning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateResigning:
		return "resigning"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// connectedToRTI reports whether the transport connection may be open.
func (s State) connectedToRTI() bool {
	switch s {
	case StateConnected, StateJoining, StateJoined, StateResigning:
		return true
	}
	return false
}
