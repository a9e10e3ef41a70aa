// Package transporttest provides a scriptable in-memory Transport for tests.
package transporttest

import (
	"context"
	"net/url"
	"sync"

	"github.com/rickgao/alpaca-stream/internal/event"
	"github.com/rickgao/alpaca-stream/internal/transport"
)

// Fake is an in-memory transport. Tests drive it by calling the Emit helpers,
// which publish synchronously on the calling goroutine.
type Fake struct {
	events event.Feed[transport.Event]

	mu     sync.Mutex
	sent   []string
	starts int
	stops  int
	closed bool
	open   bool

	// OnStart runs inside Start after the call is recorded. A nil hook leaves
	// the fake waiting for the test to emit events.
	OnStart func(f *Fake) error

	// SendErr, when set, is returned from every Send.
	SendErr error
}

// New returns an idle fake.
func New() *Fake {
	return &Fake{}
}

// Factory returns a transport.Factory that always yields f.
func (f *Fake) Factory() transport.Factory {
	return func(*url.URL) (transport.Transport, error) {
		return f, nil
	}
}

// Start records the call and runs OnStart.
func (f *Fake) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return transport.ErrClosed
	}
	f.starts++
	hook := f.OnStart
	f.mu.Unlock()

	if hook != nil {
		return hook(f)
	}
	return nil
}

// Stop records the call and emits closed if the fake was open.
func (f *Fake) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stops++
	wasOpen := f.open
	f.open = false
	f.mu.Unlock()

	if wasOpen {
		f.events.Emit(transport.Event{Kind: transport.EventClosed})
	}
	return nil
}

// Send records text.
func (f *Fake) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

// Subscribe registers fn for events.
func (f *Fake) Subscribe(fn func(transport.Event)) func() {
	return f.events.Subscribe(fn)
}

// Close marks the fake closed and drops subscribers.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.open = false
	f.mu.Unlock()
	f.events.Clear()
	return nil
}

// EmitOpened publishes an opened event.
func (f *Fake) EmitOpened() {
	f.mu.Lock()
	f.open = true
	f.mu.Unlock()
	f.events.Emit(transport.Event{Kind: transport.EventOpened})
}

// EmitClosed publishes a closed event.
func (f *Fake) EmitClosed() {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	f.events.Emit(transport.Event{Kind: transport.EventClosed})
}

// EmitMessage publishes a text frame.
func (f *Fake) EmitMessage(text string) {
	f.events.Emit(transport.Event{Kind: transport.EventMessage, Text: text})
}

// EmitData publishes a binary frame.
func (f *Fake) EmitData(data []byte) {
	f.events.Emit(transport.Event{Kind: transport.EventData, Data: data})
}

// EmitError publishes an error event.
func (f *Fake) EmitError(err error) {
	f.events.Emit(transport.Event{Kind: transport.EventError, Err: err})
}

// Sent returns a copy of every frame passed to Send.
func (f *Fake) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// Starts returns how many times Start was called.
func (f *Fake) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Stops returns how many times Stop was called.
func (f *Fake) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Subscribers returns the number of active event subscribers.
func (f *Fake) Subscribers() int {
	return f.events.Len()
}
