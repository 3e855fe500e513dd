package notify

// State is the lifecycle of the hub connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

// started reports whether a connection is live or being pursued.
func (s State) started() bool {
	return s != Disconnected
}
