package stream

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/rickgao/alpaca-stream/internal/auth"
	"github.com/rickgao/alpaca-stream/internal/transport"
)

// Config holds everything a Client needs before it can connect.
type Config struct {
	Endpoint    *url.URL
	Credentials auth.Credentials

	// TransportFactory builds the transport for Endpoint. Nil selects the
	// gorilla websocket transport with default settings.
	TransportFactory transport.Factory

	// SendLimit caps outbound frames per second. Zero disables limiting.
	SendLimit rate.Limit
	SendBurst int

	// IsBenign reports whether a transport fault should be suppressed.
	// Nil selects transport.IsAlreadyConnected.
	IsBenign func(error) bool
}

// Validate checks the endpoint and credentials.
func (c *Config) Validate() error {
	if c.Endpoint == nil {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if c.Endpoint.Scheme != "ws" && c.Endpoint.Scheme != "wss" {
		return fmt.Errorf("%w: endpoint scheme must be ws or wss, got %q", ErrInvalidConfig, c.Endpoint.Scheme)
	}
	if c.Endpoint.Host == "" {
		return fmt.Errorf("%w: endpoint host is required", ErrInvalidConfig)
	}
	if c.Credentials == nil {
		return fmt.Errorf("%w: credentials are required", ErrInvalidConfig)
	}
	if err := c.Credentials.Validate(); err != nil {
		return fmt.Errorf("%w: credentials: %w", ErrInvalidConfig, err)
	}
	if c.SendLimit < 0 {
		return fmt.Errorf("%w: send limit must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// ParseEndpoint parses raw into an endpoint URL, reporting parse failures as
// ErrInvalidConfig.
func ParseEndpoint(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("parse endpoint: %w", err))
	}
	return u, nil
}
