package entity

import (
	"time"

	"gorm.io/datatypes"
)

type PortfolioSnapshot struct {
	ID            int64          `json:"id"`
	Day           time.Time      `gorm:"not null;uniqueIndex;type:date" json:"day"`
	Cash          float64        `gorm:"not null" json:"cash"`
	PositionValue float64        `gorm:"not null" json:"position_value"`
	TotalValue    float64        `gorm:"not null" json:"total_value"`
	Positions     datatypes.JSON `gorm:"type:jsonb" json:"positions"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}
