package trading

import "github.com/google/uuid"

// Stream names used as message-type keys.
const (
	StreamAuthorization  = "authorization"
	StreamListening      = "listening"
	StreamTradeUpdates   = "trade_updates"
	StreamAccountUpdates = "account_updates"
)

// Order is the order carried by a trade update.
type Order struct {
	OrderID       uuid.UUID
	ClientOrderID string
	AssetID       uuid.UUID
	Symbol        string
	Exchange      string
	AssetClass    string

	Quantity       int64
	FilledQuantity int64

	Type        string // market, limit, stop, stop_limit
	Side        string // buy, sell
	TimeInForce string // day, gtc, opg, ...
	Status      string // new, partially_filled, filled, canceled, ...

	// Prices (micro-dollars, 0 when unset)
	LimitPrice     int64
	StopPrice      int64
	FilledAvgPrice int64

	// Timing (µs since epoch, 0 when unset)
	CreatedAt   int64
	UpdatedAt   int64
	SubmittedAt int64
	FilledAt    int64
	ExpiredAt   int64
	CanceledAt  int64
	FailedAt    int64
}

// TradeUpdate is an order lifecycle event.
type TradeUpdate struct {
	Event            string // new, fill, partial_fill, canceled, expired, ...
	ExecutionID      string
	Price            int64 // Fill price (micro-dollars), fills only
	Quantity         int64 // Fill quantity, fills only
	PositionQuantity int64
	Timestamp        int64 // Event time (µs since epoch)
	ReceivedAt       int64 // Local receive time (µs since epoch)
	Order            Order
}

// AccountUpdate is an account status or balance change.
type AccountUpdate struct {
	AccountID        uuid.UUID
	Status           string
	Currency         string
	Cash             int64 // micro-dollars
	CashWithdrawable int64 // micro-dollars
	CreatedAt        int64
	UpdatedAt        int64
	DeletedAt        int64
	ReceivedAt       int64
}
