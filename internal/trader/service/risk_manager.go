package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang-ai-trader/internal/entity"
	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/internal/trader/repository"
	"golang-ai-trader/pkg/logger"
	"golang-ai-trader/pkg/metrics"
	"golang-ai-trader/pkg/utils"
)

// RiskManagerService gates every trade. When it cannot determine the
// portfolio state it denies the trade rather than guessing.
type RiskManagerService interface {
	EvaluateTrade(ctx context.Context, intent *dto.TradeIntent) error
	CircuitBreakerTripped(ctx context.Context) (bool, float64, error)
	CalculatePositionSize(ctx context.Context, ticker string, confidence, price float64) (*dto.PositionSizing, error)
	CheckExitTriggers(ctx context.Context) ([]dto.TriggeredExit, error)
}

type riskManagerService struct {
	cfg     *config.Risk
	logger  *logger.Logger
	tracker PositionTrackerService
	broker  repository.BrokerRepository
	metrics *metrics.Metrics

	// Once the daily loss limit is breached the breaker stays latched for
	// the rest of that trading day, even if the portfolio recovers.
	mu         sync.Mutex
	trippedDay time.Time
}

func NewRiskManagerService(
	cfg *config.Risk,
	log *logger.Logger,
	tracker PositionTrackerService,
	broker repository.BrokerRepository,
	m *metrics.Metrics,
) RiskManagerService {
	return &riskManagerService{
		cfg:     cfg,
		logger:  log,
		tracker: tracker,
		broker:  broker,
		metrics: m,
	}
}

// EvaluateTrade runs every risk check against the intent and returns a
// RiskDeniedError on the first violation.
func (s *riskManagerService) EvaluateTrade(ctx context.Context, intent *dto.TradeIntent) error {
	if err := validateIntent(intent); err != nil {
		return err
	}

	state, err := s.tracker.GetPortfolioState(ctx)
	if err != nil {
		// Fail closed: an unknown portfolio state denies the trade.
		s.logger.Error("Denying trade, portfolio state unavailable", logger.ErrorField(err))
		return s.deny("portfolio_state", fmt.Sprintf("portfolio state unavailable: %v", err))
	}

	// Protective exits bypass the breaker: on the day the breaker fires is
	// exactly when stop-losses must still be able to close positions.
	if !isProtectiveExit(intent) {
		if state.DailyPnLPct <= -s.cfg.DailyLossLimitPct {
			s.latchBreaker()
		}
		if s.breakerLatched() {
			return s.deny(dto.RiskRuleCircuitBreaker,
				fmt.Sprintf("daily loss limit of %.2f%% breached (current %.2f%%), trading halted until the next trading day",
					s.cfg.DailyLossLimitPct, state.DailyPnLPct))
		}
	}

	switch intent.Side {
	case entity.OrderSideBuy:
		return s.evaluateBuy(intent, state)
	case entity.OrderSideSell:
		return s.evaluateSell(intent, state)
	default:
		return &dto.ValidationError{Field: "side", Message: fmt.Sprintf("unknown side %q", intent.Side)}
	}
}

// isProtectiveExit reports whether the intent is a stop-loss or take-profit
// close generated by the exit sweep rather than a new trade.
func isProtectiveExit(intent *dto.TradeIntent) bool {
	if intent.Side != entity.OrderSideSell {
		return false
	}
	return intent.Reason == entity.OrderReasonStopLoss || intent.Reason == entity.OrderReasonTakeProfit
}

func validateIntent(intent *dto.TradeIntent) error {
	if intent.Ticker == "" {
		return &dto.ValidationError{Field: "ticker", Message: "ticker is required"}
	}
	if intent.Quantity <= 0 {
		return &dto.ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}
	if intent.Price <= 0 {
		return &dto.ValidationError{Field: "price", Message: "price must be positive"}
	}
	return nil
}

func (s *riskManagerService) evaluateBuy(intent *dto.TradeIntent, state *dto.PortfolioState) error {
	cost := float64(intent.Quantity) * intent.Price
	if cost > state.Cash {
		return s.deny("insufficient_cash",
			fmt.Sprintf("cost %.2f exceeds cash %.2f", cost, state.Cash))
	}

	var currentValue float64
	for _, p := range state.Positions {
		if p.Ticker == intent.Ticker {
			currentValue = p.MarketValue
		}
	}
	postValue := currentValue + cost
	if state.TotalValue > 0 {
		postPct := postValue / state.TotalValue * 100
		if postPct > s.cfg.MaxPositionSizePct {
			return s.deny("position_cap",
				fmt.Sprintf("%s would be %.1f%% of portfolio, cap is %.1f%%", intent.Ticker, postPct, s.cfg.MaxPositionSizePct))
		}
	}
	return nil
}

func (s *riskManagerService) evaluateSell(intent *dto.TradeIntent, state *dto.PortfolioState) error {
	for _, p := range state.Positions {
		if p.Ticker == intent.Ticker {
			if intent.Quantity > p.Quantity {
				return s.deny("insufficient_quantity",
					fmt.Sprintf("selling %d but holding %d of %s", intent.Quantity, p.Quantity, intent.Ticker))
			}
			return nil
		}
	}
	return s.deny("no_position", fmt.Sprintf("no position in %s to sell", intent.Ticker))
}

func (s *riskManagerService) deny(rule, message string) error {
	s.metrics.RiskDenialsTotal.Inc()
	s.logger.Warn("Trade denied", logger.StringField("rule", rule), logger.StringField("reason", message))
	return &dto.RiskDeniedError{Rule: rule, Message: message}
}

// CircuitBreakerTripped reports whether the daily loss limit has been
// breached today, together with the current daily P/L percentage. A trip
// latches: recovering above the limit intraday does not re-allow trading.
func (s *riskManagerService) CircuitBreakerTripped(ctx context.Context) (bool, float64, error) {
	state, err := s.tracker.GetPortfolioState(ctx)
	if err != nil {
		return true, 0, fmt.Errorf("failed to load portfolio state: %w", err)
	}
	s.metrics.PortfolioValue.Set(state.TotalValue)
	if state.DailyPnLPct <= -s.cfg.DailyLossLimitPct {
		s.latchBreaker()
	}
	return s.breakerLatched(), state.DailyPnLPct, nil
}

func (s *riskManagerService) latchBreaker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trippedDay = utils.TradingDay(time.Now())
}

func (s *riskManagerService) breakerLatched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.trippedDay.IsZero() && s.trippedDay.Equal(utils.TradingDay(time.Now()))
}

// CalculatePositionSize scales the per-ticker value cap by confidence and
// converts the remaining room into whole shares, bounded by cash. A positive
// target that rounds to zero shares still buys one share when cash allows.
func (s *riskManagerService) CalculatePositionSize(ctx context.Context, ticker string, confidence, price float64) (*dto.PositionSizing, error) {
	if price <= 0 {
		return nil, &dto.ValidationError{Field: "price", Message: "price must be positive"}
	}
	confidence = math.Max(0, math.Min(1, confidence))

	state, err := s.tracker.GetPortfolioState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio state: %w", err)
	}

	var currentValue float64
	for _, p := range state.Positions {
		if p.Ticker == ticker {
			currentValue = p.MarketValue
		}
	}

	maxPositionValue := state.TotalValue * s.cfg.MaxPositionSizePct / 100
	target := maxPositionValue*confidence - currentValue
	if target <= 0 {
		return &dto.PositionSizing{Ticker: ticker, TargetValue: target}, nil
	}

	budget := math.Min(target, state.Cash)
	cappedByCash := state.Cash < target
	quantity := int64(budget / price)
	if quantity == 0 && state.Cash >= price {
		quantity = 1
	}
	return &dto.PositionSizing{
		Ticker:        ticker,
		Quantity:      quantity,
		EstimatedCost: float64(quantity) * price,
		TargetValue:   target,
		CappedByCash:  cappedByCash,
	}, nil
}

// CheckExitTriggers refreshes prices and lists positions breaching their
// stop-loss, trailing stop, or take-profit level. Stop-loss wins when both
// levels are breached at once.
func (s *riskManagerService) CheckExitTriggers(ctx context.Context) ([]dto.TriggeredExit, error) {
	positions, err := s.tracker.RefreshPrices(ctx)
	if err != nil {
		return nil, err
	}
	var exits []dto.TriggeredExit
	for i := range positions {
		p := &positions[i]
		switch {
		case p.ShouldStopLoss(p.CurrentPrice):
			exits = append(exits, dto.TriggeredExit{
				Ticker:       p.Ticker,
				Quantity:     p.Quantity,
				Kind:         entity.OrderReasonStopLoss,
				TriggerPrice: p.StopLossPrice,
				CurrentPrice: p.CurrentPrice,
			})
		case p.ShouldTakeProfit(p.CurrentPrice):
			exits = append(exits, dto.TriggeredExit{
				Ticker:       p.Ticker,
				Quantity:     p.Quantity,
				Kind:         entity.OrderReasonTakeProfit,
				TriggerPrice: p.TakeProfitPrice,
				CurrentPrice: p.CurrentPrice,
			})
		}
	}
	return exits, nil
}
