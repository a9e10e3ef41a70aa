package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/alpaca-stream/internal/auth"
)

const accountJSON = `{
	"id": "904837e3-3b76-47ec-b432-046db621571b",
	"account_number": "PA1234567",
	"status": "ACTIVE",
	"currency": "USD",
	"cash": "100000.50",
	"buying_power": "400000",
	"equity": "100250.25",
	"trading_blocked": false,
	"pattern_day_trader": true
}`

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://paper-api.alpaca.markets/", nil)

		if c.baseURL != "https://paper-api.alpaca.markets" {
			t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		hc := &http.Client{}
		c := NewClient("https://example.com", nil,
			WithHTTPClient(hc),
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
		)
		if c.httpClient != hc || hc.Timeout != 15*time.Second {
			t.Errorf("http client not configured: %+v", c.httpClient)
		}
		if c.maxRetries != 10 || c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retries = %d/%v", c.maxRetries, c.retryBackoff)
		}
	})
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 403, Message: "forbidden"}
	if err.Error() != "alpaca api error 403: forbidden" {
		t.Errorf("Error() = %q", err.Error())
	}

	tests := []struct {
		code int
		want bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		if got := (&APIError{StatusCode: tt.code}).IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable() for %d = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestGetAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/account" {
			t.Errorf("path = %q, want /v2/account", r.URL.Path)
		}
		if r.Header.Get("APCA-API-KEY-ID") != "AKID" || r.Header.Get("APCA-API-SECRET-KEY") != "shh" {
			t.Errorf("missing key headers: %v", r.Header)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(accountJSON))
	}))
	defer server.Close()

	c := NewClient(server.URL, &auth.SecretKey{KeyID: "AKID", Secret: "shh"})
	acct, err := c.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}

	if acct.ID.String() != "904837e3-3b76-47ec-b432-046db621571b" {
		t.Errorf("ID = %s", acct.ID)
	}
	if acct.Status != "ACTIVE" || acct.AccountNumber != "PA1234567" {
		t.Errorf("account = %+v", acct)
	}
	if acct.Cash != 100000500000 {
		t.Errorf("Cash = %d, want 100000500000", acct.Cash)
	}
	if acct.Equity != 100250250000 {
		t.Errorf("Equity = %d, want 100250250000", acct.Equity)
	}
	if !acct.PatternDayTrader {
		t.Error("PatternDayTrader = false, want true")
	}
}

func TestGetAccount_Unauthorized(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Authorization") != "Bearer bad-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":40110000,"message":"request is not authorized"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, &auth.OAuthKey{Token: "bad-token"}, WithRetries(3, time.Millisecond))
	_, err := c.GetAccount(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("GetAccount() error = %v, want unauthorized", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("error is not *APIError")
	}
	if apiErr.Code != 40110000 || apiErr.Message != "request is not authorized" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1 (no retry on 401)", requests.Load())
	}
}

func TestGetClock_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"is_open":true,"timestamp":"2024-01-15T14:30:45Z","next_open":"2024-01-16T14:30:00Z","next_close":"2024-01-15T21:00:00Z"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, WithRetries(3, time.Millisecond))
	clock, err := c.GetClock(context.Background())
	if err != nil {
		t.Fatalf("GetClock() error = %v", err)
	}
	if !clock.IsOpen {
		t.Error("IsOpen = false, want true")
	}
	if clock.Timestamp != 1705329045000000 {
		t.Errorf("Timestamp = %d, want 1705329045000000", clock.Timestamp)
	}
	if requests.Load() != 3 {
		t.Errorf("requests = %d, want 3", requests.Load())
	}
}

func TestGet_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, WithRetries(2, time.Millisecond))
	_, err := c.GetClock(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("error = %v, want wrapped 429", err)
	}
}

func TestGet_ContextCanceledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(server.URL, nil, WithRetries(5, time.Second))
	_, err := c.GetAccount(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}
