// recorder streams Alpaca trade updates and writes them to PostgreSQL.
// Usage: go run ./cmd/recorder --config configs/recorder.local.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/alpaca-stream/internal/api"
	"github.com/rickgao/alpaca-stream/internal/config"
	"github.com/rickgao/alpaca-stream/internal/database"
	"github.com/rickgao/alpaca-stream/internal/metrics"
	"github.com/rickgao/alpaca-stream/internal/recorder"
	"github.com/rickgao/alpaca-stream/internal/stream"
	"github.com/rickgao/alpaca-stream/internal/trading"
	"github.com/rickgao/alpaca-stream/internal/version"
)

// retryPolicy controls the stream reconnect loop.
type retryPolicy struct {
	AuthTimeout time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func defaultRetryPolicy(authTimeout time.Duration) retryPolicy {
	return retryPolicy{
		AuthTimeout: authTimeout,
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
	}
}

func main() {
	configPath := flag.String("config", "configs/recorder.local.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting recorder",
		"version", version.String(),
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("recorder failed", "error", err)
		os.Exit(1)
	}
	logger.Info("recorder stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	streamMetrics := metrics.NewStream(cfg.Metrics.Namespace, stream.StateNames())
	if err := streamMetrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Stream client
	tc, err := cfg.Stream.TradingConfig(logger)
	if err != nil {
		return err
	}
	// Verify credentials against the REST API before streaming
	apiClient := api.NewClient(cfg.Stream.APIURL, tc.Stream.Credentials,
		api.WithLogger(logger),
		api.WithTimeout(30*time.Second),
		api.WithRetries(3, time.Second),
	)
	account, err := apiClient.GetAccount(ctx)
	if err != nil {
		return err
	}
	logger.Info("account verified",
		"account_number", account.AccountNumber,
		"status", account.Status,
		"trading_blocked", account.TradingBlocked,
	)

	client, err := trading.New(tc, stream.WithLogger(logger), stream.WithMetrics(streamMetrics))
	if err != nil {
		return fmt.Errorf("create stream client: %w", err)
	}
	defer client.Close()

	client.OnError(func(err error) {
		logger.Warn("stream error", "error", err)
	})

	// Database and writer
	var (
		pool   *pgxpool.Pool
		writer *recorder.Writer
	)
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database, "alpaca-recorder-"+cfg.Instance.ID)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := recorder.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		writer = recorder.New(cfg.Recorder.WriterConfig(), pool, logger)
		if err := writer.Start(ctx); err != nil {
			return fmt.Errorf("start recorder: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			if err := writer.Stop(stopCtx); err != nil {
				logger.Error("recorder stop failed", "error", err)
			}
			logger.Info("recorder flushed", "stats", writer.Stats())
		}()

		detach := writer.Attach(client)
		defer detach()
	} else {
		logger.Warn("recorder disabled, updates are only logged")
		client.OnTradeUpdate(func(u trading.TradeUpdate) {
			logger.Info("trade update", "event", u.Event, "symbol", u.Order.Symbol, "order_id", u.Order.OrderID)
		})
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHTTPHandler(cfg.Metrics.Path, reg, client, pool, writer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return runStream(gctx, client, defaultRetryPolicy(cfg.Stream.AuthTimeout), logger)
	})

	return g.Wait()
}

// runStream keeps the client connected until ctx is done. A closed socket is
// reconnected with exponential backoff; a rejected authentication is fatal.
func runStream(ctx context.Context, client *trading.Client, policy retryPolicy, logger *slog.Logger) error {
	closed := make(chan struct{}, 1)
	unsub := client.OnSocketClosed(func() {
		select {
		case closed <- struct{}{}:
		default:
		}
	})
	defer unsub()

	delay := policy.BaseDelay
	for {
		authCtx, authCancel := context.WithTimeout(ctx, policy.AuthTimeout)
		status, err := client.ConnectAndAuthenticate(authCtx)
		authCancel()

		switch {
		case ctx.Err() != nil:
			return disconnect(client, logger)
		case err != nil:
			logger.Warn("connect failed", "error", err, "retry_in", delay)
			// The socket may still be open after a handshake timeout; a
			// retry on it would only report "already connected".
			disconnect(client, logger)
		case status != stream.Authorized:
			return errors.New("authentication rejected")
		default:
			logger.Info("stream authenticated")
			delay = policy.BaseDelay
			select {
			case <-ctx.Done():
				return disconnect(client, logger)
			case <-closed:
				logger.Warn("stream closed, reconnecting", "retry_in", delay)
			}
		}

		// Drop a stale close signal from a failed attempt.
		select {
		case <-closed:
		default:
		}

		select {
		case <-ctx.Done():
			return disconnect(client, logger)
		case <-time.After(delay):
		}
		delay = min(delay*2, policy.MaxDelay)
	}
}

func disconnect(client *trading.Client, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("disconnect failed", "error", err)
	}
	return nil
}

// newHTTPHandler serves /health and the Prometheus endpoint.
func newHTTPHandler(metricsPath string, reg *prometheus.Registry, client *trading.Client, pool *pgxpool.Pool, writer *recorder.Writer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler(reg))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		state := client.State()
		health.Components["stream"] = map[string]any{
			"state":     state.String(),
			"listening": client.Listening(),
			"routing":   client.Stats(),
			"dispatch":  client.QueueStats(),
		}
		if state != stream.Authenticated {
			health.Status = "degraded"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}
		if writer != nil {
			health.Components["recorder"] = writer.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
