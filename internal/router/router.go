package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Dispatch looks up key in handlers and enqueues the handler call on q. The
// handler is never invoked inline. A missing key, a refused enqueue, or a
// panic while preparing the dispatch is passed to report as a *ProtocolError.
func Dispatch[K comparable](handlers Handlers[K], key K, msg json.RawMessage, q Enqueuer, report func(error)) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			report(&ProtocolError{Key: keyString(key), Err: fmt.Errorf("dispatch panic: %v", r)})
		}
	}()

	handler, found := handlers[key]
	if !found {
		report(&ProtocolError{Key: keyString(key), Err: ErrUnknownKey})
		return false
	}

	if !q.Enqueue(func() error { return handler(msg) }) {
		report(&ProtocolError{Key: keyString(key), Err: ErrQueueClosed})
		return false
	}
	return true
}

// Router binds a handler table to a queue and an error sink and keeps
// routing statistics.
type Router[K comparable] struct {
	handlers Handlers[K]
	queue    Enqueuer
	report   func(error)
	logger   *slog.Logger
	onRouted func(key string)

	routed  atomic.Int64
	unknown atomic.Int64
	failed  atomic.Int64
}

// New creates a Router. report receives every routing failure.
func New[K comparable](handlers Handlers[K], queue Enqueuer, report func(error), logger *slog.Logger) *Router[K] {
	if logger == nil {
		logger = slog.Default()
	}
	if handlers == nil {
		handlers = Handlers[K]{}
	}

	return &Router[K]{
		handlers: handlers,
		queue:    queue,
		report:   report,
		logger:   logger,
	}
}

// OnRouted sets a hook called with the key of every routed message. Set it
// before dispatching starts.
func (r *Router[K]) OnRouted(fn func(key string)) {
	r.onRouted = fn
}

// Dispatch routes a single message.
func (r *Router[K]) Dispatch(key K, msg json.RawMessage) bool {
	ok := Dispatch(r.handlers, key, msg, r.queue, r.countFailure)
	if ok {
		r.routed.Add(1)
		if r.onRouted != nil {
			r.onRouted(keyString(key))
		}
	}
	return ok
}

// Fail reports a message that never reached key lookup, such as an
// undecodable envelope.
func (r *Router[K]) Fail(err error) {
	r.failed.Add(1)
	r.report(&ProtocolError{Err: fmt.Errorf("%w: %w", ErrMalformed, err)})
}

// Stats returns current statistics.
func (r *Router[K]) Stats() Stats {
	return Stats{
		MessagesRouted:  r.routed.Load(),
		UnknownMessages: r.unknown.Load(),
		Failures:        r.failed.Load(),
	}
}

func (r *Router[K]) countFailure(err error) {
	if pe, ok := err.(*ProtocolError); ok && pe.Err == ErrUnknownKey {
		r.unknown.Add(1)
		r.logger.Debug("unknown message type", "type", pe.Key)
	} else {
		r.failed.Add(1)
	}
	r.report(err)
}

func keyString[K comparable](key K) string {
	if s, ok := any(key).(string); ok {
		return s
	}
	return fmt.Sprint(key)
}
