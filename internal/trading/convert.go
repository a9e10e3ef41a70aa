package trading

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DollarsToMicros converts a dollar string to micro-dollars.
// "179.08" -> 179080000, "0.000001" -> 1
// Returns 0 for empty or invalid input.
func DollarsToMicros(dollars string) int64 {
	dollars = strings.TrimSpace(dollars)
	if dollars == "" {
		return 0
	}

	f, err := strconv.ParseFloat(dollars, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 1_000_000))
}

// ParseQuantity converts a share quantity string to whole shares.
// Returns 0 for empty or invalid input.
func ParseQuantity(qty string) int64 {
	qty = strings.TrimSpace(qty)
	if qty == "" {
		return 0
	}

	if n, err := strconv.ParseInt(qty, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// ParseTimestamp parses an RFC 3339 timestamp to microseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return 0
		}
	}
	return t.UnixMicro()
}

// NowMicro returns the current time in microseconds since epoch.
func NowMicro() int64 {
	return time.Now().UnixMicro()
}

// parseID parses an optional UUID. Empty input yields uuid.Nil.
func parseID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return id, nil
}

// ToModel converts an apiOrder to Order.
func (o *apiOrder) ToModel() (Order, error) {
	orderID, err := parseID("order id", o.ID)
	if err != nil {
		return Order{}, err
	}
	assetID, err := parseID("asset id", o.AssetID)
	if err != nil {
		return Order{}, err
	}

	return Order{
		OrderID:        orderID,
		ClientOrderID:  o.ClientOrderID,
		AssetID:        assetID,
		Symbol:         o.Symbol,
		Exchange:       o.Exchange,
		AssetClass:     o.AssetClass,
		Quantity:       ParseQuantity(o.Qty),
		FilledQuantity: ParseQuantity(o.FilledQty),
		Type:           o.Type,
		Side:           o.Side,
		TimeInForce:    o.TimeInForce,
		Status:         o.Status,
		LimitPrice:     DollarsToMicros(o.LimitPrice),
		StopPrice:      DollarsToMicros(o.StopPrice),
		FilledAvgPrice: DollarsToMicros(o.FilledAvgPrice),
		CreatedAt:      ParseTimestamp(o.CreatedAt),
		UpdatedAt:      ParseTimestamp(o.UpdatedAt),
		SubmittedAt:    ParseTimestamp(o.SubmittedAt),
		FilledAt:       ParseTimestamp(o.FilledAt),
		ExpiredAt:      ParseTimestamp(o.ExpiredAt),
		CanceledAt:     ParseTimestamp(o.CanceledAt),
		FailedAt:       ParseTimestamp(o.FailedAt),
	}, nil
}

// ToModel converts an apiTradeUpdate to TradeUpdate.
func (u *apiTradeUpdate) ToModel() (TradeUpdate, error) {
	order, err := u.Order.ToModel()
	if err != nil {
		return TradeUpdate{}, err
	}

	return TradeUpdate{
		Event:            u.Event,
		ExecutionID:      u.ExecutionID,
		Price:            DollarsToMicros(u.Price),
		Quantity:         ParseQuantity(u.Qty),
		PositionQuantity: ParseQuantity(u.PositionQty),
		Timestamp:        ParseTimestamp(u.Timestamp),
		ReceivedAt:       NowMicro(),
		Order:            order,
	}, nil
}

// ToModel converts an apiAccountUpdate to AccountUpdate.
func (a *apiAccountUpdate) ToModel() (AccountUpdate, error) {
	id, err := parseID("account id", a.ID)
	if err != nil {
		return AccountUpdate{}, err
	}

	return AccountUpdate{
		AccountID:        id,
		Status:           a.Status,
		Currency:         a.Currency,
		Cash:             DollarsToMicros(a.Cash),
		CashWithdrawable: DollarsToMicros(a.CashWithdrawable),
		CreatedAt:        ParseTimestamp(a.CreatedAt),
		UpdatedAt:        ParseTimestamp(a.UpdatedAt),
		DeletedAt:        ParseTimestamp(a.DeletedAt),
		ReceivedAt:       NowMicro(),
	}, nil
}
