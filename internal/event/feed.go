// Package event provides a small thread-safe publish/subscribe primitive used
// to wire transport, dispatch and client notifications together.
package event

import "sync"

// Feed is a list of subscribers that receive every emitted value.
//
// Subscribers are invoked synchronously on the emitting goroutine, in
// subscription order. Emit works on a snapshot of the list, so subscribing or
// unsubscribing from inside a callback is safe.
type Feed[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe adds fn to the feed and returns a function that removes it.
// The returned function is idempotent.
func (f *Feed[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, subscriber[T]{id: id, fn: fn})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

// Emit delivers v to every current subscriber.
func (f *Feed[T]) Emit(v T) {
	f.mu.Lock()
	snapshot := f.subs
	f.mu.Unlock()

	for _, s := range snapshot {
		s.fn(v)
	}
}

// Len returns the number of active subscribers.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Clear removes all subscribers.
func (f *Feed[T]) Clear() {
	f.mu.Lock()
	f.subs = nil
	f.mu.Unlock()
}

// remove copies the slice rather than editing in place so that snapshots held
// by in-flight Emit calls stay intact.
func (f *Feed[T]) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, s := range f.subs {
		if s.id != id {
			continue
		}
		next := make([]subscriber[T], 0, len(f.subs)-1)
		next = append(next, f.subs[:i]...)
		next = append(next, f.subs[i+1:]...)
		f.subs = next
		return
	}
}
