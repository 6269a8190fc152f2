// Package transport hides the concrete duplex message-channel behind a
// small capability so the agent bridge and the command router can share
// retry/timeout logic and be tested against an in-memory implementation.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send after the connection has been closed or
// terminated.
var ErrClosed = errors.New("transport: connection closed")

// Conn is one end of a duplex text-frame message channel.
type Conn interface {
	// Send writes one frame, honouring ctx cancellation/deadline.
	Send(ctx context.Context, data []byte) error
	// Close performs a graceful close.
	Close() error
	// Terminate aborts the connection without a closing handshake.
	Terminate()
}

// Callbacks deliver inbound traffic and lifecycle signals for a Conn. They
// are supplied at dial time; OnClose fires exactly once, with the error that
// ended the connection (nil-able for graceful peer close).
type Callbacks struct {
	OnMessage func(data []byte)
	OnClose   func(err error)
}

// Dialer establishes outbound connections. The bridge depends on this
// interface only, so tests substitute an in-memory implementation.
type Dialer interface {
	Dial(ctx context.Context, url string, cb Callbacks) (Conn, error)
}
