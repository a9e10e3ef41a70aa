package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/alpaca-stream/internal/event"
)

// WebSocketConfig configures a WebSocket transport.
type WebSocketConfig struct {
	URL              string        // e.g. wss://paper-api.alpaca.markets/stream
	Header           http.Header   // Extra handshake headers (nil = none)
	HandshakeTimeout time.Duration // Dial handshake timeout
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
}

// DefaultWebSocketConfig returns sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// NewWebSocketFactory returns a Factory producing WebSocket transports that
// share cfg and differ only by endpoint.
func NewWebSocketFactory(cfg WebSocketConfig, logger *slog.Logger) Factory {
	return func(endpoint *url.URL) (Transport, error) {
		if endpoint == nil {
			return nil, fmt.Errorf("websocket endpoint is required")
		}
		c := cfg
		c.URL = endpoint.String()
		return NewWebSocket(c, logger), nil
	}
}

// WebSocket is a Transport over a gorilla/websocket connection.
// It can be started again after Stop; Close is final.
type WebSocket struct {
	cfg    WebSocketConfig
	logger *slog.Logger

	events event.Feed[Event]

	// Write serialization
	writeMu sync.Mutex

	// State
	mu       sync.RWMutex
	sess          *session
	starting      bool
	stopRequested bool // Stop ran while a dial was in flight
	closed        bool
}

// session is the state of one dialed connection.
type session struct {
	conn *websocket.Conn

	done     chan struct{} // closed by Stop
	loopDone chan struct{} // closed when the read loop exits

	stopping atomic.Bool
	stale    atomic.Bool

	pingMu     sync.Mutex
	lastPingAt time.Time
}

func (s *session) touch() {
	s.pingMu.Lock()
	s.lastPingAt = time.Now()
	s.pingMu.Unlock()
}

func (s *session) sinceLastPing() time.Duration {
	s.pingMu.Lock()
	defer s.pingMu.Unlock()
	return time.Since(s.lastPingAt)
}

// NewWebSocket creates a new WebSocket transport. It does not dial.
func NewWebSocket(cfg WebSocketConfig, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultWebSocketConfig()
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = defaults.PingTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	return &WebSocket{
		cfg:    cfg,
		logger: logger.With("component", "websocket", "url", cfg.URL),
	}
}

// Subscribe registers fn for transport events.
func (w *WebSocket) Subscribe(fn func(Event)) func() {
	return w.events.Subscribe(fn)
}

// Start dials the server. When a connection is already open (or being
// opened) Start publishes ErrAlreadyConnected as an error event and returns nil.
func (w *WebSocket) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.sess != nil || w.starting {
		w.mu.Unlock()
		w.events.Emit(Event{Kind: EventError, Err: ErrAlreadyConnected})
		return nil
	}
	w.starting = true
	w.stopRequested = false
	w.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: w.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, w.cfg.URL, w.cfg.Header)

	w.mu.Lock()
	w.starting = false
	if err != nil {
		w.mu.Unlock()
		err = fmt.Errorf("dial: %w", err)
		w.events.Emit(Event{Kind: EventError, Err: err})
		return err
	}
	if w.closed {
		w.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	if w.stopRequested {
		w.stopRequested = false
		w.mu.Unlock()
		conn.Close()
		w.logger.Debug("dial completed after stop, connection dropped")
		return ErrStopped
	}
	s := &session{
		conn:     conn,
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	s.touch()
	w.sess = s
	w.mu.Unlock()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		s.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	go w.readLoop(s)
	go w.heartbeatLoop(s)

	w.logger.Debug("websocket connected")
	return nil
}

// Stop closes the current connection and waits for the read loop to publish
// the closed event, or for ctx to expire. A dial in flight is abandoned: its
// Start returns ErrStopped once the dial completes.
func (w *WebSocket) Stop(ctx context.Context) error {
	w.mu.Lock()
	s := w.sess
	w.sess = nil
	if s == nil && w.starting {
		w.stopRequested = true
	}
	w.mu.Unlock()

	if s == nil {
		return nil
	}

	s.stopping.Store(true)
	close(s.done)

	w.writeMu.Lock()
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	w.writeMu.Unlock()
	s.conn.Close()

	select {
	case <-s.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes a text frame.
func (w *WebSocket) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.RLock()
	s := w.sess
	w.mu.RUnlock()
	if s == nil {
		return ErrNotConnected
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline := time.Now().Add(w.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close stops the transport for good and drops all subscribers.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.Stop(ctx)

	w.events.Clear()
	return err
}

// IsConnected returns the current connection state.
func (w *WebSocket) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sess != nil
}

// readLoop publishes opened, every received frame, and finally closed.
func (w *WebSocket) readLoop(s *session) {
	defer func() {
		w.mu.Lock()
		if w.sess == s {
			w.sess = nil
		}
		w.mu.Unlock()

		w.events.Emit(Event{Kind: EventClosed})
		close(s.loopDone)
	}()

	w.events.Emit(Event{Kind: EventOpened})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			// Ignore errors after Stop() or a stale-connection teardown
			if s.stopping.Load() || s.stale.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Debug("websocket closed by server", "error", err)
				return
			}
			w.events.Emit(Event{Kind: EventError, Err: err})
			return
		}

		switch msgType {
		case websocket.TextMessage:
			w.events.Emit(Event{Kind: EventMessage, Text: string(data)})
		case websocket.BinaryMessage:
			w.events.Emit(Event{Kind: EventData, Data: data})
		}
	}
}

// heartbeatLoop pings the server and tears the connection down when it goes stale.
func (w *WebSocket) heartbeatLoop(s *session) {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.loopDone:
			return
		case <-ticker.C:
			deadline := time.Now().Add(w.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				w.logger.Debug("failed to send ping", "error", err)
			}

			if since := s.sinceLastPing(); since > w.cfg.PingTimeout {
				w.logger.Warn("no ping received, connection stale",
					"since", since,
					"timeout", w.cfg.PingTimeout,
				)
				s.stale.Store(true)
				w.events.Emit(Event{Kind: EventError, Err: ErrStaleConnection})
				s.conn.Close()
				return
			}
		}
	}
}
