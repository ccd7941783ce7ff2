package netpiano

// ConnState represents the broker connection status of the client.
type ConnState int

const (
	// StateDisconnected means no connection exists. This is the initial
	// state and the terminal state after Close or a failed reconnect.
	StateDisconnected ConnState = iota
	// StateConnecting means Connect() has been called, loops are starting.
	StateConnecting
	// StateConnected means loops are running and the topic is subscribed.
	StateConnected
	// StateReconnecting means the transport dropped and the client is
	// retrying with backoff.
	StateReconnecting
)

// String returns a string representation of the ConnState.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// IsConnected checks if the client is in a connected state.
func (s ConnState) IsConnected() bool {
	return s == StateConnected
}

// IsDisconnected checks if the client is in a disconnected state.
func (s ConnState) IsDisconnected() bool {
	return s == StateDisconnected
}

// IsConnecting checks if the client is in a connecting state.
func (s ConnState) IsConnecting() bool {
	return s == StateConnecting
}

// IsReconnecting checks if the client is retrying a dropped connection.
func (s ConnState) IsReconnecting() bool {
	return s == StateReconnecting
}
