package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/rickgao/alpaca-stream/internal/recorder"
	"github.com/rickgao/alpaca-stream/internal/stream"
	"github.com/rickgao/alpaca-stream/internal/trading"
	"github.com/rickgao/alpaca-stream/internal/transport"
	"github.com/rickgao/alpaca-stream/internal/version"
)

// TradingConfig builds the trading client configuration, including a
// websocket factory carrying the socket timeouts.
func (s *StreamConfig) TradingConfig(logger *slog.Logger) (trading.Config, error) {
	creds, err := s.Credentials()
	if err != nil {
		return trading.Config{}, fmt.Errorf("stream credentials: %w", err)
	}

	endpoint, err := s.endpoint()
	if err != nil {
		return trading.Config{}, err
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	factory := transport.NewWebSocketFactory(transport.WebSocketConfig{
		Header:           header,
		HandshakeTimeout: s.HandshakeTimeout,
		PingInterval:     s.PingInterval,
		PingTimeout:      s.PingTimeout,
		WriteTimeout:     s.WriteTimeout,
	}, logger)

	return trading.Config{
		Stream: stream.Config{
			Endpoint:         endpoint,
			Credentials:      creds,
			TransportFactory: factory,
			SendLimit:        rate.Limit(s.SendLimit),
			SendBurst:        s.SendBurst,
		},
		AccountUpdates: s.AccountUpdates,
	}, nil
}

func (s *StreamConfig) endpoint() (*url.URL, error) {
	if s.Endpoint != "" {
		return stream.ParseEndpoint(s.Endpoint)
	}
	return trading.StreamEndpoint(s.APIURL)
}

// WriterConfig converts recorder settings for recorder.New.
func (r *RecorderConfig) WriterConfig() recorder.Config {
	return recorder.Config{
		BatchSize:     r.BatchSize,
		FlushInterval: r.FlushInterval,
		BufferSize:    r.BufferSize,
	}
}

// NewLogger builds a slog logger writing to w at the configured level and
// format. Unknown values fall back to info and text.
func (l *LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.level()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (l *LogConfig) level() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
