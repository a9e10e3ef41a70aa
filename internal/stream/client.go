package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/alpaca-stream/internal/auth"
	"github.com/rickgao/alpaca-stream/internal/dispatch"
	"github.com/rickgao/alpaca-stream/internal/event"
	"github.com/rickgao/alpaca-stream/internal/metrics"
	"github.com/rickgao/alpaca-stream/internal/router"
	"github.com/rickgao/alpaca-stream/internal/transport"
)

// Protocol is implemented by concrete stream clients. Both methods run on the
// transport's goroutine and must not block.
type Protocol interface {
	// HandleOpened runs when the socket opens. It typically sends the
	// authentication request. ctx is cancelled when the client is closed.
	HandleOpened(ctx context.Context)

	// HandleMessage receives every inbound frame as text.
	HandleMessage(text string)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus collectors. Nil disables metrics.
func WithMetrics(m *metrics.Stream) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client owns one transport and one dispatch queue and turns their events
// into the connected, socket-opened, socket-closed and error notifications.
type Client struct {
	cfg     Config
	proto   Protocol
	logger  *slog.Logger
	metrics *metrics.Stream
	limiter *rate.Limiter

	transport  transport.Transport
	queue      *dispatch.Queue
	classifier *Classifier

	connected event.Feed[AuthStatus]
	opened    event.Feed[struct{}]
	closed    event.Feed[struct{}]
	errors    event.Feed[error]
	faults    event.Feed[error] // raw transport faults, before classification

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	pending  *handshake
	disposed bool

	unsubTransport func()
	unsubQueue     func()
	closeOnce      sync.Once
}

// New validates cfg and creates a Client. proto may be nil, in which case an
// opened socket is reported as Connected(Authorized) and frames are dropped.
func New(cfg Config, proto Protocol, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		proto:  proto,
		logger: slog.Default(),
		state:  Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "stream", "endpoint", cfg.Endpoint.String())

	factory := cfg.TransportFactory
	if factory == nil {
		factory = transport.NewWebSocketFactory(transport.DefaultWebSocketConfig(), c.logger)
	}
	t, err := factory(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	if cfg.SendLimit > 0 {
		burst := cfg.SendBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(cfg.SendLimit, burst)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.transport = t
	c.queue = dispatch.NewQueue(c.logger)
	c.classifier = NewClassifier(cfg.IsBenign, c.errors.Emit)

	c.unsubQueue = c.queue.OnError(c.ReportError)
	c.unsubTransport = t.Subscribe(c.handleTransportEvent)
	c.metrics.StateChanged(Disconnected.String())

	return c, nil
}

// OnConnected subscribes fn to handshake outcomes.
func (c *Client) OnConnected(fn func(AuthStatus)) (unsubscribe func()) {
	return c.connected.Subscribe(fn)
}

// OnSocketOpened subscribes fn to transport opens.
func (c *Client) OnSocketOpened(fn func()) (unsubscribe func()) {
	return c.opened.Subscribe(func(struct{}) { fn() })
}

// OnSocketClosed subscribes fn to transport closes.
func (c *Client) OnSocketClosed(fn func()) (unsubscribe func()) {
	return c.closed.Subscribe(func(struct{}) { fn() })
}

// OnError subscribes fn to non-benign faults.
func (c *Client) OnError(fn func(error)) (unsubscribe func()) {
	return c.errors.Subscribe(fn)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Classifier returns the fault classifier shared by the handshake and error
// forwarding.
func (c *Client) Classifier() *Classifier {
	return c.classifier
}

// Context returns a context that is cancelled when the client is closed.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Credentials returns the configured credentials.
func (c *Client) Credentials() auth.Credentials {
	return c.cfg.Credentials
}

// QueueStats returns statistics of the dispatch queue's backing buffer.
func (c *Client) QueueStats() dispatch.BufferStats {
	return c.queue.Stats()
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Connect starts the transport. It returns once the start sequence has been
// initiated; the socket-opened event reports when the socket is usable.
func (c *Client) Connect(ctx context.Context) error {
	if c.isDisposed() {
		return ErrClosed
	}

	c.transition(Connecting)
	if err := c.transport.Start(ctx); err != nil {
		if !errors.Is(err, transport.ErrStopped) {
			c.transition(Faulted)
		}
		return &ConnectionError{Op: "connect", Err: err}
	}
	return nil
}

// ConnectAndAuthenticate connects and waits for the handshake outcome.
//
// A benign transport fault resolves as Unauthorized with a nil error. Any
// other fault, including a failed send or a handler error reported while
// waiting, or a close before the outcome, returns a *ConnectionError.
// Cancelling ctx returns ctx.Err(). Only one call may wait at a time; a
// concurrent call returns ErrHandshakeInProgress.
func (c *Client) ConnectAndAuthenticate(ctx context.Context) (AuthStatus, error) {
	if err := ctx.Err(); err != nil {
		return Unauthorized, err
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return Unauthorized, ErrClosed
	}
	if c.pending != nil {
		c.mu.Unlock()
		return Unauthorized, ErrHandshakeInProgress
	}
	hs := newHandshake()
	c.pending = hs
	c.mu.Unlock()

	defer func() {
		hs.release()
		c.mu.Lock()
		if c.pending == hs {
			c.pending = nil
		}
		c.mu.Unlock()
	}()

	// Subscribe before starting so an immediate open cannot be missed.
	hs.watch(
		c.connected.Subscribe(func(status AuthStatus) {
			hs.resolve(status, nil)
		}),
		c.faults.Subscribe(func(err error) {
			if c.classifier.IsBenign(err) {
				if hs.resolve(Unauthorized, nil) {
					c.metrics.HandshakeResolved("benign")
				}
				return
			}
			hs.resolve(Unauthorized, &ConnectionError{Op: "authenticate", Err: err})
		}),
		c.closed.Subscribe(func(struct{}) {
			hs.resolve(Unauthorized, &ConnectionError{Op: "authenticate", Err: ErrConnectionClosed})
		}),
		// Failed sends, handler faults and protocol faults reach only the
		// public error feed. Benign faults never get here.
		c.errors.Subscribe(func(err error) {
			var cerr *ConnectionError
			if !errors.As(err, &cerr) {
				err = &ConnectionError{Op: "authenticate", Err: err}
			}
			hs.resolve(Unauthorized, err)
		}),
	)

	if err := c.Connect(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			hs.resolve(Unauthorized, ctxErr)
		} else {
			hs.resolve(Unauthorized, err)
		}
	}

	var r handshakeResult
	select {
	case r = <-hs.result:
	case <-ctx.Done():
		hs.resolve(Unauthorized, ctx.Err())
		r = <-hs.result
	}

	switch {
	case r.err == nil:
	case errors.Is(r.err, context.Canceled), errors.Is(r.err, context.DeadlineExceeded):
		c.metrics.HandshakeResolved("canceled")
	default:
		c.metrics.HandshakeResolved("failed")
	}
	return r.status, r.err
}

// Disconnect stops the transport. It is a no-op when the client is already
// disconnected, closed or disposed.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed || c.state == Disconnected || c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(Closed)
	c.mu.Unlock()

	if err := c.transport.Stop(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Close releases the transport and the dispatch queue and removes all
// subscriptions. A pending handshake resolves with ErrClosed. Close is
// idempotent; only the first call can return an error.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.disposed = true
		hs := c.pending
		c.setStateLocked(Closed)
		c.mu.Unlock()

		c.unsubTransport()
		c.unsubQueue()

		if hs != nil {
			hs.resolve(Unauthorized, ErrClosed)
		}

		c.cancel()
		err = c.transport.Close()
		c.queue.Close()

		c.connected.Clear()
		c.opened.Clear()
		c.closed.Clear()
		c.errors.Clear()
		c.faults.Clear()

		c.logger.Debug("stream client closed")
	})
	return err
}

// NotifyConnected publishes a handshake outcome. Concrete clients call it
// when the server answers the authentication request.
func (c *Client) NotifyConnected(status AuthStatus) {
	if status == Authorized {
		c.transition(Authenticated)
	} else {
		c.transition(Unauthenticated)
	}
	c.metrics.HandshakeResolved(status.String())
	c.logger.Info("stream connected", "status", status.String())
	c.connected.Emit(status)
}

// ReportError classifies err and forwards it to OnError subscribers unless it
// is benign.
func (c *Client) ReportError(err error) {
	if err == nil {
		return
	}
	if !c.classifier.Forward(err) {
		c.metrics.ErrorObserved(metrics.ClassBenign)
		c.logger.Debug("suppressed benign fault", "error", err)
		return
	}
	c.metrics.ErrorObserved(errorClass(err))
}

// SendJSON serializes v and sends it as a single text frame. A transport
// failure is returned and also reported on OnError.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("send limiter: %w", err)
		}
	}

	if err := c.transport.Send(ctx, string(data)); err != nil {
		cerr := &ConnectionError{Op: "send", Err: err}
		c.ReportError(cerr)
		return cerr
	}
	c.metrics.FrameSent()
	return nil
}

// Dispatch routes msg to the handler registered for key on c's dispatch
// queue. Unknown keys are reported on OnError.
func Dispatch[K comparable](c *Client, handlers router.Handlers[K], key K, msg json.RawMessage) bool {
	ok := router.Dispatch(handlers, key, msg, c.enqueuer(), c.ReportError)
	if ok {
		c.metrics.MessageDispatched(fmt.Sprint(key))
	}
	return ok
}

// NewRouter binds handlers to c's dispatch queue and error feed.
func NewRouter[K comparable](c *Client, handlers router.Handlers[K]) *router.Router[K] {
	r := router.New(handlers, c.enqueuer(), c.ReportError, c.logger)
	r.OnRouted(c.metrics.MessageDispatched)
	return r
}

func (c *Client) handleTransportEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventOpened:
		c.transition(Open)
		c.logger.Debug("socket opened")
		c.opened.Emit(struct{}{})

		if c.proto == nil {
			c.NotifyConnected(Authorized)
			return
		}
		c.transition(Authenticating)
		c.safely("opened", func() { c.proto.HandleOpened(c.ctx) })

	case transport.EventClosed:
		c.mu.Lock()
		if c.state != Closed {
			c.setStateLocked(Disconnected)
		}
		c.mu.Unlock()
		c.logger.Debug("socket closed")
		c.closed.Emit(struct{}{})

	case transport.EventMessage:
		c.metrics.FrameReceived("text")
		c.handleText(ev.Text)

	case transport.EventData:
		c.metrics.FrameReceived("binary")
		c.handleText(strings.ToValidUTF8(string(ev.Data), "\uFFFD"))

	case transport.EventError:
		c.faults.Emit(ev.Err)
		if c.classifier.IsBenign(ev.Err) {
			c.metrics.ErrorObserved(metrics.ClassBenign)
			c.logger.Debug("suppressed benign transport fault", "error", ev.Err)
			return
		}
		c.transition(Faulted)
		c.logger.Warn("transport fault", "error", ev.Err)
		c.ReportError(&ConnectionError{Op: "transport", Err: ev.Err})
	}
}

func (c *Client) handleText(text string) {
	if c.proto == nil {
		return
	}
	c.safely("message", func() { c.proto.HandleMessage(text) })
}

// safely runs a protocol hook, reporting a panic as a protocol fault so it
// cannot take down the transport goroutine.
func (c *Client) safely(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.ReportError(&router.ProtocolError{Err: fmt.Errorf("%s hook panic: %v", hook, r)})
		}
	}()
	fn()
}

func (c *Client) enqueuer() router.Enqueuer {
	if c.metrics == nil {
		return c.queue
	}
	return timedQueue{queue: c.queue, metrics: c.metrics}
}

// timedQueue records handler execution time.
type timedQueue struct {
	queue   *dispatch.Queue
	metrics *metrics.Stream
}

func (q timedQueue) Enqueue(action dispatch.Action) bool {
	if action == nil {
		return false
	}
	return q.queue.Enqueue(func() error {
		start := time.Now()
		err := action()
		q.metrics.HandlerObserved(time.Since(start))
		return err
	})
}

func (c *Client) transition(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(next)
}

func (c *Client) setStateLocked(next State) {
	if c.state == next {
		return
	}
	if !c.state.CanTransitionTo(next) {
		c.logger.Debug("ignored state transition", "from", c.state.String(), "to", next.String())
		return
	}
	c.state = next
	c.metrics.StateChanged(next.String())
}

func (c *Client) isDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func errorClass(err error) string {
	var (
		perr *router.ProtocolError
		herr *dispatch.HandlerError
	)
	switch {
	case errors.As(err, &perr):
		return metrics.ClassProtocol
	case errors.As(err, &herr):
		return metrics.ClassHandler
	default:
		return metrics.ClassConnection
	}
}
