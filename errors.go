package netpiano

import "fmt"

// ConnectionError means the transport failed to establish or dropped. The
// client stays usable; publishes fail until the connection comes back.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection to %s failed", e.Endpoint)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PublishError means a single publish attempt failed or was rejected. It is
// reported per attempt and never retried automatically.
type PublishError struct {
	Topic string
	ID    int64
	Err   error
}

func (e *PublishError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("publish on %s failed: %v", e.Topic, e.Err)
	}
	return fmt.Sprintf("publish %d on %s failed: %v", e.ID, e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// SubscriptionError means the inbound subscription failed. Outbound
// publishing is not blocked by it.
type SubscriptionError struct {
	Topic string
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %s failed: %v", e.Topic, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// ErrNotConnected is the cause carried by publish failures while the client
// is not connected.
var ErrNotConnected = fmt.Errorf("not connected")
