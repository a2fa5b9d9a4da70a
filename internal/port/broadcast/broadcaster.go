// Package broadcast defines the ports for delivering staged frames to observers.
package broadcast

import "context"

// Sink receives an encoded frame for delivery. kind is the bulletin kind
// or control type, useful for subject routing; frame is the complete JSON
// payload. Delivery failures are handled inside the sink, never returned.
type Sink interface {
	Send(ctx context.Context, kind string, frame []byte)
}

// Presence reports how many observers are currently connected.
type Presence interface {
	ConnectionCount() int
}
