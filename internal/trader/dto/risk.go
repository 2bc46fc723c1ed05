package dto

// TriggeredExit is one open position whose stop-loss or take-profit level is
// breached at the current price.
type TriggeredExit struct {
	Ticker       string  `json:"ticker"`
	Quantity     int64   `json:"quantity"`
	Kind         string  `json:"kind"`
	TriggerPrice float64 `json:"trigger_price"`
	CurrentPrice float64 `json:"current_price"`
}
