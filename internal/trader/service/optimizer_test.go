package service

import (
	"context"
	"testing"
	"time"

	"golang-ai-trader/internal/entity"
	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func optimizerConfig() *config.Optimizer {
	return &config.Optimizer{
		RiskFreeRate:       0.04,
		LookbackDays:       252,
		TradingDaysPerYear: 252,
		FrontierPoints:     10,
		RebalanceTolerance: 0.05,
	}
}

func makeCloses(returns []float64) []dto.DailyClose {
	closes := make([]dto.DailyClose, 0, len(returns)+1)
	price := 100.0
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	closes = append(closes, dto.DailyClose{Date: day, Close: price})
	for i, r := range returns {
		price *= 1 + r
		closes = append(closes, dto.DailyClose{Date: day.AddDate(0, 0, i+1), Close: price})
	}
	return closes
}

// repeat builds a return series by cycling the pattern n times.
func repeat(pattern []float64, n int) []float64 {
	out := make([]float64, 0, len(pattern)*n)
	for i := 0; i < n; i++ {
		out = append(out, pattern...)
	}
	return out
}

func newOptimizer(broker *fakeBroker, tracker *fakeTracker) OptimizerService {
	return NewOptimizerService(optimizerConfig(), testLogger(), broker, tracker)
}

func TestOptimizeMinVarianceInverseVarianceWeights(t *testing.T) {
	// Two uncorrelated zero-mean assets: LOW swings 1%, HIGH swings 2%.
	// Minimum variance splits weights inversely to variance, 80/20.
	broker := &fakeBroker{closes: map[string][]dto.DailyClose{
		"LOW":  makeCloses(repeat([]float64{0.01, -0.01, 0.01, -0.01}, 10)),
		"HIGH": makeCloses(repeat([]float64{0.02, 0.02, -0.02, -0.02}, 10)),
	}}
	svc := newOptimizer(broker, &fakeTracker{})

	result, err := svc.Optimize(context.Background(), []string{"LOW", "HIGH"}, dto.ObjectiveMinVariance)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, result.Weights["LOW"], 0.05)
	assert.InDelta(t, 0.2, result.Weights["HIGH"], 0.05)
	assert.InDelta(t, 1.0, result.Weights["LOW"]+result.Weights["HIGH"], 1e-6)
}

func TestOptimizeMaxReturnConcentrates(t *testing.T) {
	broker := &fakeBroker{closes: map[string][]dto.DailyClose{
		"SLOW": makeCloses(repeat([]float64{0.002, -0.001}, 20)),
		"FAST": makeCloses(repeat([]float64{0.03, -0.01}, 20)),
	}}
	svc := newOptimizer(broker, &fakeTracker{})

	result, err := svc.Optimize(context.Background(), []string{"SLOW", "FAST"}, dto.ObjectiveMaxReturn)
	require.NoError(t, err)
	assert.Greater(t, result.Weights["FAST"], 0.95)
}

func TestOptimizeSharpePrefersBetterRatio(t *testing.T) {
	// Same volatility, one asset with a clearly higher mean: the sharpe
	// portfolio leans heavily toward it.
	broker := &fakeBroker{closes: map[string][]dto.DailyClose{
		"MEH":  makeCloses(repeat([]float64{0.011, -0.01, 0.011, -0.01}, 10)),
		"GOOD": makeCloses(repeat([]float64{0.02, -0.005, 0.02, -0.005}, 10)),
	}}
	svc := newOptimizer(broker, &fakeTracker{})

	result, err := svc.Optimize(context.Background(), []string{"MEH", "GOOD"}, dto.ObjectiveSharpe)
	require.NoError(t, err)
	assert.Greater(t, result.Weights["GOOD"], result.Weights["MEH"])
	assert.Greater(t, result.SharpeRatio, 0.0)
}

func TestOptimizeUnknownObjective(t *testing.T) {
	broker := &fakeBroker{closes: map[string][]dto.DailyClose{
		"A": makeCloses(repeat([]float64{0.01, -0.01}, 20)),
		"B": makeCloses(repeat([]float64{0.02, -0.02}, 20)),
	}}
	svc := newOptimizer(broker, &fakeTracker{})

	_, err := svc.Optimize(context.Background(), []string{"A", "B"}, "maximize_vibes")
	var validationErr *dto.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestOptimizeInsufficientData(t *testing.T) {
	broker := &fakeBroker{closes: map[string][]dto.DailyClose{
		"A": makeCloses(repeat([]float64{0.01, -0.01}, 20)),
		"B": makeCloses([]float64{0.01, -0.01, 0.01}),
	}}
	svc := newOptimizer(broker, &fakeTracker{})

	_, err := svc.Optimize(context.Background(), []string{"A", "B"}, dto.ObjectiveMinVariance)
	var insufficientErr *dto.InsufficientDataError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Contains(t, insufficientErr.What, "B")
}

func TestOptimizeDegenerateCovariance(t *testing.T) {
	flat := repeat([]float64{0, 0}, 20)
	broker := &fakeBroker{closes: map[string][]dto.DailyClose{
		"A": makeCloses(flat),
		"B": makeCloses(flat),
	}}
	svc := newOptimizer(broker, &fakeTracker{})

	_, err := svc.Optimize(context.Background(), []string{"A", "B"}, dto.ObjectiveMinVariance)
	assert.ErrorContains(t, err, "degenerate covariance")
}

func TestOptimizeNeedsTwoTickers(t *testing.T) {
	svc := newOptimizer(&fakeBroker{}, &fakeTracker{})
	_, err := svc.Optimize(context.Background(), []string{"A"}, dto.ObjectiveMinVariance)
	var validationErr *dto.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestEfficientFrontier(t *testing.T) {
	broker := &fakeBroker{closes: map[string][]dto.DailyClose{
		"LOW":  makeCloses(repeat([]float64{0.012, -0.01, 0.012, -0.01}, 10)),
		"HIGH": makeCloses(repeat([]float64{0.03, -0.02, 0.03, -0.02}, 10)),
	}}
	svc := newOptimizer(broker, &fakeTracker{})

	points, err := svc.EfficientFrontier(context.Background(), []string{"LOW", "HIGH"})
	require.NoError(t, err)
	require.Len(t, points, 10)
	for i, point := range points {
		sum := 0.0
		for _, w := range point.Weights {
			assert.GreaterOrEqual(t, w, -1e-9)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
		if i > 0 {
			assert.Greater(t, point.TargetReturn, points[i-1].TargetReturn)
		}
	}
}

func TestRebalancePlanGeneratesDriftTrades(t *testing.T) {
	broker := &fakeBroker{
		closes: map[string][]dto.DailyClose{
			"SLOW": makeCloses(repeat([]float64{0.002, -0.001}, 20)),
			"FAST": makeCloses(repeat([]float64{0.03, -0.01}, 20)),
		},
		prices: map[string]float64{"SLOW": 100, "FAST": 50},
	}
	tracker := &fakeTracker{state: &dto.PortfolioState{
		TotalValue: 10000,
		Positions: []dto.PositionState{
			{Ticker: "SLOW", Quantity: 100, MarketValue: 10000},
		},
	}}
	svc := newOptimizer(broker, tracker)

	actions, result, err := svc.RebalancePlan(context.Background(), []string{"SLOW", "FAST"}, dto.ObjectiveMaxReturn)
	require.NoError(t, err)
	assert.Greater(t, result.Weights["FAST"], 0.95)
	require.Len(t, actions, 2)

	assert.Equal(t, entity.OrderSideSell, actions[0].Side)
	assert.Equal(t, "SLOW", actions[0].Ticker)
	assert.Equal(t, entity.OrderSideBuy, actions[1].Side)
	assert.Equal(t, "FAST", actions[1].Ticker)
	// Roughly the full portfolio moves: ~100 shares sold, ~200 bought.
	assert.InDelta(t, 100, actions[0].Quantity, 5)
	assert.InDelta(t, 200, actions[1].Quantity, 12)
}

func TestRebalancePlanNoActionsWithinTolerance(t *testing.T) {
	broker := &fakeBroker{
		closes: map[string][]dto.DailyClose{
			"LOW":  makeCloses(repeat([]float64{0.01, -0.01, 0.01, -0.01}, 10)),
			"HIGH": makeCloses(repeat([]float64{0.02, 0.02, -0.02, -0.02}, 10)),
		},
		prices: map[string]float64{"LOW": 100, "HIGH": 100},
	}
	tracker := &fakeTracker{state: &dto.PortfolioState{
		TotalValue: 10000,
		Positions: []dto.PositionState{
			{Ticker: "LOW", Quantity: 80, MarketValue: 8000},
			{Ticker: "HIGH", Quantity: 20, MarketValue: 2000},
		},
	}}
	svc := newOptimizer(broker, tracker)

	actions, _, err := svc.RebalancePlan(context.Background(), []string{"LOW", "HIGH"}, dto.ObjectiveMinVariance)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestProjectOntoSimplex(t *testing.T) {
	v := []float64{0.5, 0.8, -0.2}
	projectOntoSimplex(v)
	sum := 0.0
	for _, x := range v {
		assert.GreaterOrEqual(t, x, 0.0)
		sum += x
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	already := []float64{0.25, 0.75}
	projectOntoSimplex(already)
	assert.InDelta(t, 0.25, already[0], 1e-9)
	assert.InDelta(t, 0.75, already[1], 1e-9)
}
