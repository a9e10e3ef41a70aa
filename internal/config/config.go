package config

import (
	"time"

	"github.com/rickgao/alpaca-stream/internal/auth"
)

// Config is the root configuration for a stream client instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DBConfig       `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// StreamConfig holds streaming endpoint, credential and socket settings.
type StreamConfig struct {
	APIURL         string `yaml:"api_url"`  // REST base URL; the stream endpoint is derived from it
	Endpoint       string `yaml:"endpoint"` // Explicit ws/wss URL, overrides api_url
	KeyID          string `yaml:"key_id"`
	SecretKey      string `yaml:"secret_key"`
	OAuthToken     string `yaml:"oauth_token"`
	AccountUpdates bool   `yaml:"account_updates"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	AuthTimeout      time.Duration `yaml:"auth_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`

	SendLimit float64 `yaml:"send_limit"` // frames per second, 0 = unlimited
	SendBurst int     `yaml:"send_burst"`
}

// Credentials builds credentials from the configured key pair or token.
func (s *StreamConfig) Credentials() (auth.Credentials, error) {
	return auth.Load(s.KeyID, s.SecretKey, s.OAuthToken)
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds batch writer settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}
