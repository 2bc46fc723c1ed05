package entity

import "time"

type Position struct {
	ID              int64     `json:"id"`
	Ticker          string    `gorm:"not null;uniqueIndex" json:"ticker"`
	Quantity        int64     `gorm:"not null" json:"quantity"`
	AvgPrice        float64   `gorm:"not null" json:"avg_price"`
	CurrentPrice    float64   `json:"current_price"`
	MaxPrice        float64   `json:"max_price"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
	TrailingStopPct float64   `json:"trailing_stop_pct"`
	RealizedPnL     float64   `json:"realized_pnl"`
	OpenedAt        time.Time `json:"opened_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// MarketValue returns the position value at the last observed price.
func (p *Position) MarketValue() float64 {
	return float64(p.Quantity) * p.CurrentPrice
}

// CostBasis returns the total acquisition cost of the position.
func (p *Position) CostBasis() float64 {
	return float64(p.Quantity) * p.AvgPrice
}

// UnrealizedPnL returns the open profit or loss at the last observed price.
func (p *Position) UnrealizedPnL() float64 {
	return p.MarketValue() - p.CostBasis()
}

// UnrealizedPnLPct returns the open profit or loss as a percentage of cost.
func (p *Position) UnrealizedPnLPct() float64 {
	cost := p.CostBasis()
	if cost == 0 {
		return 0
	}
	return p.UnrealizedPnL() / cost * 100
}

// ShouldStopLoss reports whether the given price breaches the fixed stop or
// the trailing stop from the maximum observed price.
func (p *Position) ShouldStopLoss(price float64) bool {
	if p.StopLossPrice > 0 && price <= p.StopLossPrice {
		return true
	}
	if p.TrailingStopPct > 0 && p.MaxPrice > 0 {
		trailing := p.MaxPrice * (1 - p.TrailingStopPct/100)
		if price <= trailing {
			return true
		}
	}
	return false
}

// ShouldTakeProfit reports whether the given price reaches the take-profit
// level.
func (p *Position) ShouldTakeProfit(price float64) bool {
	return p.TakeProfitPrice > 0 && price >= p.TakeProfitPrice
}
