package stream

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrInvalidConfig       = errors.New("invalid stream config")
	ErrClosed              = errors.New("stream client closed")
	ErrHandshakeInProgress = errors.New("authentication handshake already in progress")
	ErrConnectionClosed    = errors.New("connection closed before authentication")
)

// ConnectionError reports a transport failure to open, send or stay open.
type ConnectionError struct {
	Op  string // connect, authenticate, send, transport
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
