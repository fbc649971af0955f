package rtsp

// State is a step of the publishing handshake.
type State int

const (
	StateUnconnected State = iota
	StateConnected
	StateOptionsAcked
	StateAnnounced
	StateSetUp
	StateRecording
	StateClosed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateOptionsAcked:
		return "options-acked"
	case StateAnnounced:
		return "announced"
	case StateSetUp:
		return "set-up"
	case StateRecording:
		return "recording"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// hasConnection reports whether a socket is open in state s.
func (s State) hasConnection() bool {
	return s >= StateConnected && s <= StateRecording
}
