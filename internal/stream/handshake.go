package stream

import "sync"

type handshakeState int

const (
	handshakeIdle handshakeState = iota
	handshakeWaiting
	handshakeResolved
)

type handshakeResult struct {
	status AuthStatus
	err    error
}

// handshake correlates one ConnectAndAuthenticate call with the first
// connected, fault or closed signal. It resolves exactly once; resolving
// removes every subscription it holds.
type handshake struct {
	result chan handshakeResult
	once   sync.Once

	mu     sync.Mutex
	state  handshakeState
	unsubs []func()
}

func newHandshake() *handshake {
	return &handshake{result: make(chan handshakeResult, 1)}
}

// watch records subscriptions to remove on resolution and marks the
// handshake as waiting. Subscriptions added after resolution are removed
// immediately.
func (h *handshake) watch(unsubs ...func()) {
	h.mu.Lock()
	if h.state == handshakeResolved {
		h.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
		return
	}
	h.state = handshakeWaiting
	h.unsubs = append(h.unsubs, unsubs...)
	h.mu.Unlock()
}

// resolve unsubscribes, then delivers the outcome. It reports whether this
// call won the race.
func (h *handshake) resolve(status AuthStatus, err error) bool {
	won := false
	h.once.Do(func() {
		h.release()
		h.result <- handshakeResult{status: status, err: err}
		won = true
	})
	return won
}

// release removes every subscription. Safe to call more than once.
func (h *handshake) release() {
	h.mu.Lock()
	h.state = handshakeResolved
	unsubs := h.unsubs
	h.unsubs = nil
	h.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

func (h *handshake) current() handshakeState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
