package service

import (
	"context"
	"errors"
	"testing"

	"golang-ai-trader/internal/entity"
	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRiskConfig() *config.Risk {
	return &config.Risk{
		MaxPositionSizePct: 40,
		DailyLossLimitPct:  20,
		StopLossPct:        30,
		TakeProfitPct:      20,
	}
}

func healthyState() *dto.PortfolioState {
	return &dto.PortfolioState{
		Cash:          50000,
		PositionValue: 50000,
		TotalValue:    100000,
		DailyPnLPct:   -2,
		Positions: []dto.PositionState{
			{Ticker: "AAPL", Quantity: 100, MarketValue: 20000},
			{Ticker: "MSFT", Quantity: 60, MarketValue: 30000},
		},
	}
}

func newRisk(tracker *fakeTracker) RiskManagerService {
	return NewRiskManagerService(defaultRiskConfig(), testLogger(), tracker, &fakeBroker{}, testMetrics())
}

func TestEvaluateTradeAllowsHealthyBuy(t *testing.T) {
	risk := newRisk(&fakeTracker{state: healthyState()})
	err := risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "NVDA", Side: entity.OrderSideBuy, Quantity: 10, Price: 100,
	})
	assert.NoError(t, err)
}

func TestEvaluateTradeDeniesWhenBreakerTripped(t *testing.T) {
	state := healthyState()
	state.DailyPnLPct = -20
	risk := newRisk(&fakeTracker{state: state})

	err := risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "NVDA", Side: entity.OrderSideBuy, Quantity: 1, Price: 100,
	})
	var denied *dto.RiskDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "circuit_breaker", denied.Rule)
}

func TestEvaluateTradeAllowsProtectiveExitDuringBreaker(t *testing.T) {
	state := healthyState()
	state.DailyPnLPct = -25
	risk := newRisk(&fakeTracker{state: state})

	// Stop-loss and take-profit closes go through even with the breaker
	// active; this is exactly when they must fire.
	err := risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "AAPL", Side: entity.OrderSideSell, Quantity: 100, Price: 100,
		Reason: entity.OrderReasonStopLoss,
	})
	assert.NoError(t, err)

	err = risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "MSFT", Side: entity.OrderSideSell, Quantity: 60, Price: 500,
		Reason: entity.OrderReasonTakeProfit,
	})
	assert.NoError(t, err)

	// A discretionary sell is still a new trade and stays halted.
	err = risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "AAPL", Side: entity.OrderSideSell, Quantity: 50, Price: 100,
	})
	var denied *dto.RiskDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, dto.RiskRuleCircuitBreaker, denied.Rule)
}

func TestCircuitBreakerLatchesForTradingDay(t *testing.T) {
	state := healthyState()
	state.DailyPnLPct = -21
	tracker := &fakeTracker{state: state}
	risk := newRisk(tracker)

	tripped, pct, err := risk.CircuitBreakerTripped(context.Background())
	require.NoError(t, err)
	assert.True(t, tripped)
	assert.InDelta(t, -21.0, pct, 1e-9)

	// An intraday recovery above the limit does not reopen trading.
	state.DailyPnLPct = -19
	tripped, pct, err = risk.CircuitBreakerTripped(context.Background())
	require.NoError(t, err)
	assert.True(t, tripped)
	assert.InDelta(t, -19.0, pct, 1e-9)

	err = risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "NVDA", Side: entity.OrderSideBuy, Quantity: 1, Price: 100,
	})
	var denied *dto.RiskDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, dto.RiskRuleCircuitBreaker, denied.Rule)
}

func TestCircuitBreakerNotTrippedAboveLimit(t *testing.T) {
	state := healthyState()
	state.DailyPnLPct = -19
	risk := newRisk(&fakeTracker{state: state})

	tripped, _, err := risk.CircuitBreakerTripped(context.Background())
	require.NoError(t, err)
	assert.False(t, tripped)
}

func TestEvaluateTradeDeniesOverPositionCap(t *testing.T) {
	risk := newRisk(&fakeTracker{state: healthyState()})

	// AAPL already holds 20k of a 100k portfolio; 21k more breaches 40%.
	err := risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "AAPL", Side: entity.OrderSideBuy, Quantity: 210, Price: 100,
	})
	var denied *dto.RiskDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "position_cap", denied.Rule)

	// Exactly at the cap passes.
	err = risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "AAPL", Side: entity.OrderSideBuy, Quantity: 200, Price: 100,
	})
	assert.NoError(t, err)
}

func TestEvaluateTradeDeniesInsufficientCash(t *testing.T) {
	risk := newRisk(&fakeTracker{state: healthyState()})
	err := risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "NVDA", Side: entity.OrderSideBuy, Quantity: 600, Price: 100,
	})
	var denied *dto.RiskDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "insufficient_cash", denied.Rule)
}

func TestEvaluateTradeDeniesSellingMoreThanHeld(t *testing.T) {
	risk := newRisk(&fakeTracker{state: healthyState()})

	err := risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "AAPL", Side: entity.OrderSideSell, Quantity: 150, Price: 100,
	})
	var denied *dto.RiskDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "insufficient_quantity", denied.Rule)

	err = risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "TSLA", Side: entity.OrderSideSell, Quantity: 1, Price: 100,
	})
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "no_position", denied.Rule)
}

func TestEvaluateTradeFailsClosedOnStateError(t *testing.T) {
	risk := newRisk(&fakeTracker{stateErr: errors.New("db down")})
	err := risk.EvaluateTrade(context.Background(), &dto.TradeIntent{
		Ticker: "AAPL", Side: entity.OrderSideBuy, Quantity: 1, Price: 100,
	})
	var denied *dto.RiskDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "portfolio_state", denied.Rule)
}

func TestEvaluateTradeValidation(t *testing.T) {
	risk := newRisk(&fakeTracker{state: healthyState()})
	var validationErr *dto.ValidationError

	err := risk.EvaluateTrade(context.Background(), &dto.TradeIntent{Side: entity.OrderSideBuy, Quantity: 1, Price: 1})
	assert.ErrorAs(t, err, &validationErr)

	err = risk.EvaluateTrade(context.Background(), &dto.TradeIntent{Ticker: "AAPL", Side: entity.OrderSideBuy, Quantity: 0, Price: 1})
	assert.ErrorAs(t, err, &validationErr)

	err = risk.EvaluateTrade(context.Background(), &dto.TradeIntent{Ticker: "AAPL", Side: entity.OrderSideBuy, Quantity: 1, Price: -5})
	assert.ErrorAs(t, err, &validationErr)
}

func TestCalculatePositionSizeScalesWithConfidence(t *testing.T) {
	risk := newRisk(&fakeTracker{state: healthyState()})

	// Full confidence on a new ticker: target 40k, cash caps at 50k,
	// so 40k / 100 = 400 shares.
	sizing, err := risk.CalculatePositionSize(context.Background(), "NVDA", 1.0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(400), sizing.Quantity)
	assert.False(t, sizing.CappedByCash)

	// Half confidence halves the target.
	sizing, err = risk.CalculatePositionSize(context.Background(), "NVDA", 0.5, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(200), sizing.Quantity)
}

func TestCalculatePositionSizeSubtractsExistingPosition(t *testing.T) {
	risk := newRisk(&fakeTracker{state: healthyState()})

	// AAPL already holds 20k, full-confidence target is 40k, so room for
	// 20k more at 100 = 200 shares.
	sizing, err := risk.CalculatePositionSize(context.Background(), "AAPL", 1.0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(200), sizing.Quantity)
}

func TestCalculatePositionSizeCappedByCash(t *testing.T) {
	state := healthyState()
	state.Cash = 5000
	risk := newRisk(&fakeTracker{state: state})

	sizing, err := risk.CalculatePositionSize(context.Background(), "NVDA", 1.0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50), sizing.Quantity)
	assert.True(t, sizing.CappedByCash)
}

func TestCalculatePositionSizeAtLeastOneShare(t *testing.T) {
	state := healthyState()
	state.Cash = 90
	risk := newRisk(&fakeTracker{state: state})

	// Budget is min(target, 90), below one share at 80; cash still covers
	// one share so it rounds up to one rather than zero.
	sizing, err := risk.CalculatePositionSize(context.Background(), "NVDA", 0.001, 80)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sizing.Quantity)
}

func TestCalculatePositionSizeZeroWhenAtTarget(t *testing.T) {
	risk := newRisk(&fakeTracker{state: healthyState()})

	// MSFT holds 30k against a 20k half-confidence target: no room.
	sizing, err := risk.CalculatePositionSize(context.Background(), "MSFT", 0.5, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sizing.Quantity)
	assert.LessOrEqual(t, sizing.TargetValue, 0.0)
}

func TestCircuitBreakerTripped(t *testing.T) {
	state := healthyState()
	state.DailyPnLPct = -25
	risk := newRisk(&fakeTracker{state: state})

	tripped, pct, err := risk.CircuitBreakerTripped(context.Background())
	require.NoError(t, err)
	assert.True(t, tripped)
	assert.InDelta(t, -25, pct, 1e-9)
}

func TestCheckExitTriggers(t *testing.T) {
	tracker := &fakeTracker{positions: []entity.Position{
		{Ticker: "AAPL", Quantity: 10, AvgPrice: 100, CurrentPrice: 65, StopLossPrice: 70},
		{Ticker: "MSFT", Quantity: 5, AvgPrice: 100, CurrentPrice: 125, TakeProfitPrice: 120},
		{Ticker: "NVDA", Quantity: 3, AvgPrice: 100, CurrentPrice: 105, StopLossPrice: 70, TakeProfitPrice: 120},
	}}
	risk := newRisk(tracker)

	exits, err := risk.CheckExitTriggers(context.Background())
	require.NoError(t, err)
	require.Len(t, exits, 2)
	assert.Equal(t, entity.OrderReasonStopLoss, exits[0].Kind)
	assert.Equal(t, "AAPL", exits[0].Ticker)
	assert.Equal(t, entity.OrderReasonTakeProfit, exits[1].Kind)
	assert.Equal(t, "MSFT", exits[1].Ticker)
}
