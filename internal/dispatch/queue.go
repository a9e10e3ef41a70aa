package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/rickgao/alpaca-stream/internal/event"
)

// ErrPanic marks a HandlerError produced by a recovered panic.
var ErrPanic = errors.New("handler panicked")

// Action is a unit of deferred work.
type Action func() error

// HandlerError reports a failed Action.
type HandlerError struct {
	Err   error
	Panic any    // Recovered value, nil for returned errors
	Stack []byte // Stack trace, panics only
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler panic: %v", e.Panic)
	}
	return fmt.Sprintf("handler error: %v", e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Queue runs actions one at a time, in enqueue order, on a single goroutine.
//
// For two actions enqueued A before B, A completes before B starts. A failing
// action is reported on the error feed and never stops the consumer.
type Queue struct {
	logger *slog.Logger

	buf    *Buffer[Action]
	errors event.Feed[error]

	closeOnce sync.Once
	done      chan struct{}
}

// NewQueue creates a queue and starts its consumer.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		logger: logger.With("component", "dispatch"),
		buf:    NewBuffer[Action](64),
		done:   make(chan struct{}),
	}
	go q.consume()
	return q
}

// Enqueue appends action to the tail. It never blocks. It returns false once
// the queue is closed, in which case the action is dropped.
func (q *Queue) Enqueue(action Action) bool {
	if action == nil {
		return false
	}
	return q.buf.Push(action)
}

// OnError subscribes fn to action failures. fn runs on the consumer goroutine.
func (q *Queue) OnError(fn func(error)) (unsubscribe func()) {
	return q.errors.Subscribe(fn)
}

// Len returns the number of pending actions.
func (q *Queue) Len() int {
	return q.buf.Len()
}

// Stats returns the backing buffer statistics.
func (q *Queue) Stats() BufferStats {
	return q.buf.Stats()
}

// Close stops the consumer. Pending actions are discarded, an action that is
// already running finishes. Close does not wait; use Done for that.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		if n := q.buf.Abort(); n > 0 {
			q.logger.Debug("discarded pending actions", "count", n)
		}
	})
}

// Done is closed when the consumer goroutine has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) consume() {
	defer close(q.done)

	for {
		action, ok := q.buf.Pop()
		if !ok {
			return
		}
		if err := q.run(action); err != nil {
			q.errors.Emit(err)
		}
	}
}

// run executes one action, converting a returned error or a panic into a
// *HandlerError.
func (q *Queue) run(action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			q.logger.Error("handler panicked", "panic", r)
			err = &HandlerError{Err: ErrPanic, Panic: r, Stack: stack}
		}
	}()

	if actionErr := action(); actionErr != nil {
		return &HandlerError{Err: actionErr}
	}
	return nil
}
