package trading

import "encoding/json"

// envelope is the frame shape of every inbound message.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type action struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
}

type listenData struct {
	Streams []string `json:"streams"`
}

type authorizationData struct {
	Status string `json:"status"`
	Action string `json:"action"`
}

type apiOrder struct {
	ID             string `json:"id"`
	ClientOrderID  string `json:"client_order_id"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	SubmittedAt    string `json:"submitted_at"`
	FilledAt       string `json:"filled_at"`
	ExpiredAt      string `json:"expired_at"`
	CanceledAt     string `json:"canceled_at"`
	FailedAt       string `json:"failed_at"`
	AssetID        string `json:"asset_id"`
	Symbol         string `json:"symbol"`
	Exchange       string `json:"exchange"`
	AssetClass     string `json:"asset_class"`
	Qty            string `json:"qty"`
	FilledQty      string `json:"filled_qty"`
	Type           string `json:"type"`
	Side           string `json:"side"`
	TimeInForce    string `json:"time_in_force"`
	LimitPrice     string `json:"limit_price"`
	StopPrice      string `json:"stop_price"`
	FilledAvgPrice string `json:"filled_avg_price"`
	Status         string `json:"status"`
}

type apiTradeUpdate struct {
	Event       string   `json:"event"`
	ExecutionID string   `json:"execution_id"`
	Price       string   `json:"price"`
	Qty         string   `json:"qty"`
	PositionQty string   `json:"position_qty"`
	Timestamp   string   `json:"timestamp"`
	Order       apiOrder `json:"order"`
}

type apiAccountUpdate struct {
	ID               string `json:"id"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	DeletedAt        string `json:"deleted_at"`
	Status           string `json:"status"`
	Currency         string `json:"currency"`
	Cash             string `json:"cash"`
	CashWithdrawable string `json:"cash_withdrawable"`
}
