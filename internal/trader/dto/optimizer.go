package dto

// Optimization objectives.
const (
	ObjectiveSharpe      = "sharpe"
	ObjectiveMinVariance = "min_variance"
	ObjectiveMaxReturn   = "max_return"
)

// OptimizationResult is the outcome of a mean-variance optimization run.
type OptimizationResult struct {
	Objective      string             `json:"objective"`
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
}

// FrontierPoint is one point on the efficient frontier.
type FrontierPoint struct {
	TargetReturn float64            `json:"target_return"`
	Volatility   float64            `json:"volatility"`
	Weights      map[string]float64 `json:"weights"`
}

// RebalanceAction is one trade needed to move the portfolio toward its
// target weights.
type RebalanceAction struct {
	Ticker        string  `json:"ticker"`
	Side          string  `json:"side"`
	Quantity      int64   `json:"quantity"`
	CurrentWeight float64 `json:"current_weight"`
	TargetWeight  float64 `json:"target_weight"`
}
