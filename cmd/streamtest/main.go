// streamtest connects to the Alpaca trading stream and prints updates to the console.
// Usage: go run ./cmd/streamtest --config configs/recorder.local.yaml
//
// Without --config, credentials are read from the environment:
//
//	APCA_API_KEY_ID     - API key ID
//	APCA_API_SECRET_KEY - API secret key
//	APCA_API_OAUTH_TOKEN - OAuth token (instead of the key pair)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/alpaca-stream/internal/auth"
	"github.com/rickgao/alpaca-stream/internal/config"
	"github.com/rickgao/alpaca-stream/internal/stream"
	"github.com/rickgao/alpaca-stream/internal/trading"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	apiURL := flag.String("api", trading.PaperAPI, "REST API base URL when no config is given")
	accounts := flag.Bool("accounts", false, "also listen to account updates")
	verbose := flag.Bool("verbose", false, "print full update JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := loadConfig(*configPath, *apiURL, *accounts)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	tc, err := cfg.Stream.TradingConfig(logger)
	if err != nil {
		logger.Error("invalid stream config", "error", err)
		os.Exit(1)
	}

	client, err := trading.New(tc, stream.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	client.OnError(func(err error) {
		logger.Warn("stream error", "error", err)
	})
	client.OnSocketClosed(func() {
		logger.Warn("socket closed")
		cancel()
	})

	client.OnTradeUpdate(func(u trading.TradeUpdate) {
		if *verbose {
			printJSON(u)
			return
		}
		fmt.Printf("[trade] %-14s %-6s %-4s status=%-16s qty=%d price=%.4f\n",
			u.Event, u.Order.Symbol, u.Order.Side, u.Order.Status,
			u.Quantity, float64(u.Price)/1e6)
	})
	client.OnAccountUpdate(func(u trading.AccountUpdate) {
		if *verbose {
			printJSON(u)
			return
		}
		fmt.Printf("[account] status=%s cash=%.2f withdrawable=%.2f %s\n",
			u.Status, float64(u.Cash)/1e6, float64(u.CashWithdrawable)/1e6, u.Currency)
	})

	authCtx, authCancel := context.WithTimeout(ctx, cfg.Stream.AuthTimeout)
	status, err := client.ConnectAndAuthenticate(authCtx)
	authCancel()
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	if status != stream.Authorized {
		logger.Error("authentication rejected")
		os.Exit(1)
	}

	logger.Info("streaming updates, press Ctrl+C to stop")
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := client.Disconnect(stopCtx); err != nil {
		logger.Warn("disconnect failed", "error", err)
	}
}

func loadConfig(path, apiURL string, accounts bool) (*config.Config, error) {
	if path != "" {
		return config.LoadWithDefaults(path)
	}

	cfg := &config.Config{}
	cfg.Stream.APIURL = apiURL
	cfg.Stream.AccountUpdates = accounts
	cfg.Stream.KeyID = os.Getenv(auth.EnvKeyID)
	cfg.Stream.SecretKey = os.Getenv(auth.EnvSecretKey)
	cfg.Stream.OAuthToken = os.Getenv(auth.EnvOAuthToken)
	cfg.ApplyDefaults()
	return cfg, nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("marshal error: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
