package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Order sides.
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// Order lifecycle statuses.
const (
	OrderStatusSubmitted     = "SUBMITTED"
	OrderStatusPending       = "PENDING"
	OrderStatusPartialFilled = "PARTIAL_FILLED"
	OrderStatusFilled        = "FILLED"
	OrderStatusCancelled     = "CANCELLED"
	OrderStatusRejected      = "REJECTED"
	OrderStatusUnknown       = "UNKNOWN"
)

// Reasons recorded on automatically generated closing orders.
const (
	OrderReasonStopLoss   = "STOP_LOSS"
	OrderReasonTakeProfit = "TAKE_PROFIT"
	OrderReasonDecision   = "DECISION"
	OrderReasonRebalance  = "REBALANCE"
)

type Order struct {
	ID             int64          `json:"id"`
	OrderNumber    string         `gorm:"not null;uniqueIndex" json:"order_number"`
	BrokerOrderID  string         `gorm:"index" json:"broker_order_id"`
	Ticker         string         `gorm:"not null;index" json:"ticker"`
	Side           string         `gorm:"not null" json:"side"`
	Quantity       int64          `gorm:"not null" json:"quantity"`
	FilledQuantity int64          `json:"filled_quantity"`
	LimitPrice     float64        `json:"limit_price"`
	AvgFillPrice   float64        `json:"avg_fill_price"`
	Status         string         `gorm:"not null;index" json:"status"`
	Reason         string         `json:"reason"`
	Detail         datatypes.JSON `gorm:"type:jsonb" json:"detail"`
	SubmittedAt    time.Time      `json:"submitted_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

var orderTransitions = map[string][]string{
	OrderStatusSubmitted:     {OrderStatusPending, OrderStatusPartialFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusUnknown},
	OrderStatusPending:       {OrderStatusPartialFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusUnknown},
	OrderStatusPartialFilled: {OrderStatusPartialFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusUnknown},
	OrderStatusUnknown:       {OrderStatusPending, OrderStatusPartialFilled, OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected},
}

// CanTransitionTo reports whether the order may move to the given status.
// Terminal statuses never transition.
func (o *Order) CanTransitionTo(status string) bool {
	for _, next := range orderTransitions[o.Status] {
		if next == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order has reached a final state.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// IsActive reports whether the order still needs reconciliation polling.
func (o *Order) IsActive() bool {
	switch o.Status {
	case OrderStatusSubmitted, OrderStatusPending, OrderStatusPartialFilled, OrderStatusUnknown:
		return true
	}
	return false
}

// FillRate returns the filled fraction of the order quantity.
func (o *Order) FillRate() float64 {
	if o.Quantity == 0 {
		return 0
	}
	return float64(o.FilledQuantity) / float64(o.Quantity)
}
