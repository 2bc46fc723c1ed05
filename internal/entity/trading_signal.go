package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Recommendation classes produced by signal aggregation.
const (
	RecommendationStrongBuy  = "STRONG_BUY"
	RecommendationBuy        = "BUY"
	RecommendationHold       = "HOLD"
	RecommendationSell       = "SELL"
	RecommendationStrongSell = "STRONG_SELL"
)

type TradingSignal struct {
	ID             int64          `json:"id"`
	Ticker         string         `gorm:"not null;index" json:"ticker"`
	Sentiment      float64        `json:"sentiment"`
	Strength       float64        `json:"strength"`
	Recommendation string         `json:"recommendation"`
	SourceScores   datatypes.JSON `gorm:"type:jsonb" json:"source_scores"`
	MissingSources pq.StringArray `gorm:"type:text[]" json:"missing_sources"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (TradingSignal) TableName() string {
	return "trading_signals"
}

// IsActionable reports whether the signal recommends opening or closing a
// position rather than holding.
func (s *TradingSignal) IsActionable() bool {
	return s.Recommendation != RecommendationHold
}
