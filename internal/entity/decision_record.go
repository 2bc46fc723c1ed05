package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Decision session outcomes.
const (
	DecisionOutcomeRunning      = "RUNNING"
	DecisionOutcomeCompleted    = "COMPLETED"
	DecisionOutcomeInconclusive = "INCONCLUSIVE"
	DecisionOutcomeAborted      = "ABORTED"
	DecisionOutcomeFailed       = "FAILED"
)

type DecisionRecord struct {
	ID             int64          `json:"id"`
	SessionType    string         `gorm:"not null;index" json:"session_type"`
	Outcome        string         `gorm:"not null" json:"outcome"`
	Summary        string         `json:"summary"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `gorm:"type:text" json:"reasoning"`
	SignalsUsed    datatypes.JSON `gorm:"type:jsonb" json:"signals_used"`
	PortfolioState datatypes.JSON `gorm:"type:jsonb" json:"portfolio_state"`
	ToolCalls      datatypes.JSON `gorm:"type:jsonb" json:"tool_calls"`
	ExecutedTrades datatypes.JSON `gorm:"type:jsonb" json:"executed_trades"`
	Iterations     int            `json:"iterations"`
	Error          string         `json:"error"`
	StartedAt      time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (DecisionRecord) TableName() string {
	return "decision_records"
}
