// Package transport provides the message-oriented connection used by the
// stream manager.
package transport

import "context"

// Transport is an ordered, full-duplex message connection.
// Send may be called concurrently with Receive, but Receive has a single reader.
type Transport interface {
	// Send writes one message.
	Send(ctx context.Context, data []byte) error
	// Receive blocks until the next message arrives or the connection fails.
	// Closing the transport unblocks a pending Receive.
	Receive(ctx context.Context) ([]byte, error)
	// Close closes the connection. It is safe to call more than once.
	Close() error
}
