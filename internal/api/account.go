package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rickgao/alpaca-stream/internal/trading"
)

// Account is the authenticated trading account.
type Account struct {
	ID               uuid.UUID
	AccountNumber    string
	Status           string
	Currency         string
	Cash             int64 // micro-dollars
	BuyingPower      int64 // micro-dollars
	Equity           int64 // micro-dollars
	TradingBlocked   bool
	PatternDayTrader bool
}

// Clock is the market clock.
type Clock struct {
	IsOpen    bool
	Timestamp int64 // µs since epoch
	NextOpen  int64
	NextClose int64
}

type apiAccount struct {
	ID               string `json:"id"`
	AccountNumber    string `json:"account_number"`
	Status           string `json:"status"`
	Currency         string `json:"currency"`
	Cash             string `json:"cash"`
	BuyingPower      string `json:"buying_power"`
	Equity           string `json:"equity"`
	TradingBlocked   bool   `json:"trading_blocked"`
	PatternDayTrader bool   `json:"pattern_day_trader"`
}

type apiClock struct {
	IsOpen    bool   `json:"is_open"`
	Timestamp string `json:"timestamp"`
	NextOpen  string `json:"next_open"`
	NextClose string `json:"next_close"`
}

// GetAccount fetches the account the credentials belong to.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	var raw apiAccount
	if err := c.get(ctx, "/v2/account", &raw); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	id, err := uuid.Parse(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("get account: invalid id %q: %w", raw.ID, err)
	}

	return &Account{
		ID:               id,
		AccountNumber:    raw.AccountNumber,
		Status:           raw.Status,
		Currency:         raw.Currency,
		Cash:             trading.DollarsToMicros(raw.Cash),
		BuyingPower:      trading.DollarsToMicros(raw.BuyingPower),
		Equity:           trading.DollarsToMicros(raw.Equity),
		TradingBlocked:   raw.TradingBlocked,
		PatternDayTrader: raw.PatternDayTrader,
	}, nil
}

// GetClock fetches the market clock.
func (c *Client) GetClock(ctx context.Context) (*Clock, error) {
	var raw apiClock
	if err := c.get(ctx, "/v2/clock", &raw); err != nil {
		return nil, fmt.Errorf("get clock: %w", err)
	}

	return &Clock{
		IsOpen:    raw.IsOpen,
		Timestamp: trading.ParseTimestamp(raw.Timestamp),
		NextOpen:  trading.ParseTimestamp(raw.NextOpen),
		NextClose: trading.ParseTimestamp(raw.NextClose),
	}, nil
}
