package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/alpaca-stream/internal/dispatch"
)

// Errors
var (
	ErrUnknownKey  = errors.New("unexpected message type")
	ErrQueueClosed = errors.New("dispatch queue closed")
	ErrMalformed   = errors.New("malformed message")
)

// Handler processes one decoded message payload.
type Handler func(msg json.RawMessage) error

// Handlers maps a message-type key to its handler. Populate it once before
// dispatching starts; concurrent reads are safe, mutation during dispatch is not.
type Handlers[K comparable] map[K]Handler

// Enqueuer accepts deferred work. *dispatch.Queue satisfies it.
type Enqueuer interface {
	Enqueue(action dispatch.Action) bool
}

// ProtocolError reports a message that could not be routed.
type ProtocolError struct {
	Key string // Message-type key, empty when the envelope could not be decoded
	Err error
}

func (e *ProtocolError) Error() string {
	switch {
	case errors.Is(e.Err, ErrUnknownKey):
		return fmt.Sprintf("unexpected message type '%s' received", e.Key)
	case e.Key == "":
		return fmt.Sprintf("protocol error: %v", e.Err)
	default:
		return fmt.Sprintf("protocol error for message type '%s': %v", e.Key, e.Err)
	}
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Stats contains routing statistics.
type Stats struct {
	MessagesRouted  int64
	UnknownMessages int64
	Failures        int64 // panics or queue refusals while preparing a dispatch
}
