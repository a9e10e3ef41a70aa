package recorder

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/alpaca-stream/internal/trading"
)

// keyNamespace scopes the SHA-1 idempotency keys of recorded rows.
var keyNamespace = uuid.MustParse("8f3c2a5e-4d1b-5e7a-9c60-2b8d4f1e7a93")

const insertTradeUpdate = `
	INSERT INTO trade_updates (update_key, event, execution_id, order_id, client_order_id,
		symbol, side, order_type, order_status, price, qty, position_qty,
		filled_qty, filled_avg_price, event_ts, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (update_key) DO NOTHING
`

const insertAccountUpdate = `
	INSERT INTO account_updates (update_key, account_id, status, currency, cash,
		cash_withdrawable, updated_at, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (update_key) DO NOTHING
`

// row is one pending insert.
type row interface {
	queue(b *pgx.Batch)
}

type tradeRow struct {
	Key            uuid.UUID
	Event          string
	ExecutionID    string
	OrderID        uuid.UUID
	ClientOrderID  string
	Symbol         string
	Side           string
	OrderType      string
	OrderStatus    string
	Price          int64
	Qty            int64
	PositionQty    int64
	FilledQty      int64
	FilledAvgPrice int64
	EventTs        int64
	ReceivedAt     int64
}

func (r tradeRow) queue(b *pgx.Batch) {
	b.Queue(insertTradeUpdate,
		r.Key, r.Event, r.ExecutionID, r.OrderID, r.ClientOrderID,
		r.Symbol, r.Side, r.OrderType, r.OrderStatus, r.Price, r.Qty, r.PositionQty,
		r.FilledQty, r.FilledAvgPrice, r.EventTs, r.ReceivedAt)
}

type accountRow struct {
	Key              uuid.UUID
	AccountID        uuid.UUID
	Status           string
	Currency         string
	Cash             int64
	CashWithdrawable int64
	UpdatedAt        int64
	ReceivedAt       int64
}

func (r accountRow) queue(b *pgx.Batch) {
	b.Queue(insertAccountUpdate,
		r.Key, r.AccountID, r.Status, r.Currency, r.Cash,
		r.CashWithdrawable, r.UpdatedAt, r.ReceivedAt)
}

// transformTrade converts a TradeUpdate to a tradeRow. The key covers the
// fields that identify one lifecycle event of one order.
func transformTrade(u trading.TradeUpdate) tradeRow {
	return tradeRow{
		Key:            updateKey(u.Order.OrderID.String(), u.Event, u.ExecutionID, strconv.FormatInt(u.Timestamp, 10)),
		Event:          u.Event,
		ExecutionID:    u.ExecutionID,
		OrderID:        u.Order.OrderID,
		ClientOrderID:  u.Order.ClientOrderID,
		Symbol:         u.Order.Symbol,
		Side:           u.Order.Side,
		OrderType:      u.Order.Type,
		OrderStatus:    u.Order.Status,
		Price:          u.Price,
		Qty:            u.Quantity,
		PositionQty:    u.PositionQuantity,
		FilledQty:      u.Order.FilledQuantity,
		FilledAvgPrice: u.Order.FilledAvgPrice,
		EventTs:        u.Timestamp,
		ReceivedAt:     u.ReceivedAt,
	}
}

// transformAccount converts an AccountUpdate to an accountRow.
func transformAccount(u trading.AccountUpdate) accountRow {
	return accountRow{
		Key: updateKey(u.AccountID.String(), u.Status,
			strconv.FormatInt(u.Cash, 10), strconv.FormatInt(u.CashWithdrawable, 10),
			strconv.FormatInt(u.UpdatedAt, 10)),
		AccountID:        u.AccountID,
		Status:           u.Status,
		Currency:         u.Currency,
		Cash:             u.Cash,
		CashWithdrawable: u.CashWithdrawable,
		UpdatedAt:        u.UpdatedAt,
		ReceivedAt:       u.ReceivedAt,
	}
}

func updateKey(parts ...string) uuid.UUID {
	return uuid.NewSHA1(keyNamespace, []byte(strings.Join(parts, "|")))
}
