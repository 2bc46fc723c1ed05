package dto

import "time"

// SubmitOrderRequest is the payload sent to the broker execution API.
type SubmitOrderRequest struct {
	OrderNumber string  `json:"order_number"`
	Ticker      string  `json:"ticker"`
	Side        string  `json:"side"`
	Quantity    int64   `json:"quantity"`
	LimitPrice  float64 `json:"limit_price,omitempty"`
}

// SubmitOrderResponse is the broker's acknowledgement of an order.
type SubmitOrderResponse struct {
	BrokerOrderID string `json:"broker_order_id"`
	Status        string `json:"status"`
}

// BrokerOrderStatus is the broker's view of an order during reconciliation.
type BrokerOrderStatus struct {
	BrokerOrderID  string     `json:"broker_order_id"`
	Status         string     `json:"status"`
	FilledQuantity int64      `json:"filled_quantity"`
	AvgFillPrice   float64    `json:"avg_fill_price"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// BrokerBalance is the account balance reported by the broker.
type BrokerBalance struct {
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buying_power"`
}

// BrokerPosition is one holding reported by the broker.
type BrokerPosition struct {
	Ticker   string  `json:"ticker"`
	Quantity int64   `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// Quote is the last traded price for a ticker.
type Quote struct {
	Ticker string    `json:"ticker"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// DailyClose is one end-of-day price observation used for return series.
type DailyClose struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// ExecutedTrade summarizes a fill reported back to the decision loop and
// recorded on the decision audit trail.
type ExecutedTrade struct {
	OrderNumber string  `json:"order_number"`
	Ticker      string  `json:"ticker"`
	Side        string  `json:"side"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
	Reason      string  `json:"reason"`
}
