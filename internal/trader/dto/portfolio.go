package dto

import "time"

// PositionState is one open position as reported in portfolio summaries.
type PositionState struct {
	Ticker           string  `json:"ticker"`
	Quantity         int64   `json:"quantity"`
	AvgPrice         float64 `json:"avg_price"`
	CurrentPrice     float64 `json:"current_price"`
	MarketValue      float64 `json:"market_value"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
	WeightPct        float64 `json:"weight_pct"`
	StopLossPrice    float64 `json:"stop_loss_price"`
	TakeProfitPrice  float64 `json:"take_profit_price"`
}

// PortfolioState is the full portfolio view used by risk checks and the
// reasoning loop.
type PortfolioState struct {
	Cash          float64         `json:"cash"`
	PositionValue float64         `json:"position_value"`
	TotalValue    float64         `json:"total_value"`
	DailyPnL      float64         `json:"daily_pnl"`
	DailyPnLPct   float64         `json:"daily_pnl_pct"`
	RealizedPnL   float64         `json:"realized_pnl"`
	Positions     []PositionState `json:"positions"`
	AsOf          time.Time       `json:"as_of"`
}

// TradeIntent is a proposed trade evaluated by risk checks before order
// submission.
type TradeIntent struct {
	Ticker   string  `json:"ticker"`
	Side     string  `json:"side"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Reason   string  `json:"reason"`
}

// PositionSizing is the outcome of confidence-scaled position sizing.
type PositionSizing struct {
	Ticker        string  `json:"ticker"`
	Quantity      int64   `json:"quantity"`
	EstimatedCost float64 `json:"estimated_cost"`
	TargetValue   float64 `json:"target_value"`
	CappedByCash  bool    `json:"capped_by_cash"`
}
