package transport

import (
	"context"
	"errors"
	"net/url"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("socket is already connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrClosed           = errors.New("transport closed")
	ErrStopped          = errors.New("stopped while connecting")
)

// IsAlreadyConnected reports whether err signals that the socket was already
// open when a start was requested.
func IsAlreadyConnected(err error) bool {
	return errors.Is(err, ErrAlreadyConnected)
}

// EventKind identifies a transport notification.
type EventKind int

const (
	EventOpened EventKind = iota + 1
	EventClosed
	EventMessage // text frame
	EventData    // binary frame
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventClosed:
		return "closed"
	case EventMessage:
		return "message"
	case EventData:
		return "data"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single notification emitted by a Transport.
type Event struct {
	Kind EventKind
	Text string // EventMessage
	Data []byte // EventData
	Err  error  // EventError
}

// Transport is a bidirectional text/binary frame stream.
//
// Events are delivered on the transport's own goroutine; subscribers must
// return quickly.
type Transport interface {
	// Start opens the underlying socket.
	Start(ctx context.Context) error

	// Stop closes the socket. Stopping a stopped transport is a no-op.
	Stop(ctx context.Context) error

	// Send writes a single text frame.
	Send(ctx context.Context, text string) error

	// Subscribe registers fn for all transport events.
	Subscribe(fn func(Event)) (unsubscribe func())

	// Close stops the transport permanently and drops all subscribers.
	Close() error
}

// Factory creates a transport bound to endpoint.
type Factory func(endpoint *url.URL) (Transport, error)
