// Package trading implements the Alpaca trading-updates stream on top of
// package stream.
//
// On socket open the client sends the authenticate action. An "authorization"
// reply resolves the handshake; when authorized the client sends "listen" for
// trade_updates (and account_updates when enabled). Updates are decoded into
// TradeUpdate and AccountUpdate records and delivered in arrival order on the
// dispatch goroutine.
//
// Conventions:
//   - Prices: int64 micro-dollars (1,000,000 = $1.00)
//   - Timestamps: int64 microseconds since Unix epoch, 0 when absent
//   - IDs: uuid.UUID, uuid.Nil when absent
package trading
