package trading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/rickgao/alpaca-stream/internal/event"
	"github.com/rickgao/alpaca-stream/internal/router"
	"github.com/rickgao/alpaca-stream/internal/stream"
)

// REST API base URLs. The streaming endpoint is derived with StreamEndpoint.
const (
	LiveAPI  = "https://api.alpaca.markets"
	PaperAPI = "https://paper-api.alpaca.markets"
)

const statusAuthorized = "authorized"

var errMissingStream = errors.New("missing stream field")

// StreamEndpoint derives the streaming URL from a REST API base URL:
// https://host -> wss://host/stream.
func StreamEndpoint(apiBase string) (*url.URL, error) {
	u, err := stream.ParseEndpoint(apiBase)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return nil, fmt.Errorf("%w: unsupported API scheme %q", stream.ErrInvalidConfig, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/stream"
	return u, nil
}

// Config configures a trading stream client.
type Config struct {
	Stream stream.Config

	// AccountUpdates adds account_updates to the listen request.
	AccountUpdates bool
}

// Client is the trading-updates stream client.
type Client struct {
	*stream.Client

	logger         *slog.Logger
	router         *router.Router[string]
	accountUpdates bool

	trades   event.Feed[TradeUpdate]
	accounts event.Feed[AccountUpdate]

	mu        sync.Mutex
	listening []string
}

// New creates a trading client. Nothing is sent until Connect or
// ConnectAndAuthenticate.
func New(cfg Config, opts ...stream.Option) (*Client, error) {
	c := &Client{accountUpdates: cfg.AccountUpdates}

	sc, err := stream.New(cfg.Stream, protocol{c}, opts...)
	if err != nil {
		return nil, err
	}
	c.Client = sc
	c.logger = sc.Logger()
	c.router = stream.NewRouter(sc, router.Handlers[string]{
		StreamAuthorization:  c.handleAuthorization,
		StreamListening:      c.handleListening,
		StreamTradeUpdates:   c.handleTradeUpdate,
		StreamAccountUpdates: c.handleAccountUpdate,
	})

	return c, nil
}

// OnTradeUpdate subscribes fn to trade updates. fn runs on the dispatch
// goroutine, one update at a time, in arrival order.
func (c *Client) OnTradeUpdate(fn func(TradeUpdate)) (unsubscribe func()) {
	return c.trades.Subscribe(fn)
}

// OnAccountUpdate subscribes fn to account updates.
func (c *Client) OnAccountUpdate(fn func(AccountUpdate)) (unsubscribe func()) {
	return c.accounts.Subscribe(fn)
}

// Listening returns the streams the server last confirmed.
func (c *Client) Listening() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.listening...)
}

// Stats returns routing statistics.
func (c *Client) Stats() router.Stats {
	return c.router.Stats()
}

// Close closes the stream client and drops update subscribers.
func (c *Client) Close() error {
	err := c.Client.Close()
	c.trades.Clear()
	c.accounts.Clear()
	return err
}

// protocol adapts Client to stream.Protocol without exporting the hooks.
type protocol struct {
	c *Client
}

func (p protocol) HandleOpened(ctx context.Context) {
	p.c.authenticate(ctx)
}

func (p protocol) HandleMessage(text string) {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		p.c.router.Fail(err)
		return
	}
	if env.Stream == "" {
		p.c.router.Fail(errMissingStream)
		return
	}
	p.c.router.Dispatch(env.Stream, env.Data)
}

func (c *Client) authenticate(ctx context.Context) {
	creds := c.Credentials()
	c.logger.Debug("sending authenticate", "credentials", creds.Redacted())

	// Send failures are reported on the error feed by SendJSON.
	if err := c.SendJSON(ctx, action{Action: "authenticate", Data: creds.AuthData()}); err != nil {
		c.logger.Warn("authenticate not sent", "error", err)
	}
}

func (c *Client) listen(ctx context.Context) {
	streams := []string{StreamTradeUpdates}
	if c.accountUpdates {
		streams = append(streams, StreamAccountUpdates)
	}

	if err := c.SendJSON(ctx, action{Action: "listen", Data: listenData{Streams: streams}}); err != nil {
		c.logger.Warn("listen not sent", "error", err)
	}
}

func (c *Client) handleAuthorization(msg json.RawMessage) error {
	var data authorizationData
	if err := json.Unmarshal(msg, &data); err != nil {
		return fmt.Errorf("%w: authorization: %w", router.ErrMalformed, err)
	}

	if data.Status != statusAuthorized {
		c.logger.Warn("authentication rejected", "status", data.Status)
		c.NotifyConnected(stream.Unauthorized)
		return nil
	}

	c.listen(c.Context())
	c.NotifyConnected(stream.Authorized)
	return nil
}

func (c *Client) handleListening(msg json.RawMessage) error {
	var data listenData
	if err := json.Unmarshal(msg, &data); err != nil {
		return fmt.Errorf("%w: listening: %w", router.ErrMalformed, err)
	}

	c.mu.Lock()
	c.listening = data.Streams
	c.mu.Unlock()

	c.logger.Info("listening", "streams", data.Streams)
	return nil
}

func (c *Client) handleTradeUpdate(msg json.RawMessage) error {
	var raw apiTradeUpdate
	if err := json.Unmarshal(msg, &raw); err != nil {
		return fmt.Errorf("%w: trade update: %w", router.ErrMalformed, err)
	}
	update, err := raw.ToModel()
	if err != nil {
		return fmt.Errorf("%w: trade update: %w", router.ErrMalformed, err)
	}

	c.trades.Emit(update)
	return nil
}

func (c *Client) handleAccountUpdate(msg json.RawMessage) error {
	var raw apiAccountUpdate
	if err := json.Unmarshal(msg, &raw); err != nil {
		return fmt.Errorf("%w: account update: %w", router.ErrMalformed, err)
	}
	update, err := raw.ToModel()
	if err != nil {
		return fmt.Errorf("%w: account update: %w", router.ErrMalformed, err)
	}

	c.accounts.Emit(update)
	return nil
}
