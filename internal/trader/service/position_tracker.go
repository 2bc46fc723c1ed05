package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-ai-trader/internal/entity"
	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/internal/trader/repository"
	"golang-ai-trader/pkg/logger"
	"golang-ai-trader/pkg/utils"
)

// PositionTrackerService maintains positions and cash, applies fills, and
// takes the daily portfolio snapshots the circuit breaker keys off.
type PositionTrackerService interface {
	GetPortfolioState(ctx context.Context) (*dto.PortfolioState, error)
	ApplyFill(ctx context.Context, order *entity.Order, fillQuantity int64, fillPrice float64) error
	RefreshPrices(ctx context.Context) ([]entity.Position, error)
	TakeSnapshot(ctx context.Context) (*entity.PortfolioSnapshot, error)
}

type positionTrackerService struct {
	riskCfg      *config.Risk
	logger       *logger.Logger
	positionRepo repository.PositionRepository
	snapshotRepo repository.SnapshotRepository
	broker       repository.BrokerRepository
}

func NewPositionTrackerService(
	riskCfg *config.Risk,
	log *logger.Logger,
	positionRepo repository.PositionRepository,
	snapshotRepo repository.SnapshotRepository,
	broker repository.BrokerRepository,
) PositionTrackerService {
	return &positionTrackerService{
		riskCfg:      riskCfg,
		logger:       log,
		positionRepo: positionRepo,
		snapshotRepo: snapshotRepo,
		broker:       broker,
	}
}

// GetPortfolioState builds the portfolio view from tracked positions and the
// broker balance. Daily P/L compares against the latest snapshot before
// today; with no prior snapshot the daily P/L is zero.
func (s *positionTrackerService) GetPortfolioState(ctx context.Context) (*dto.PortfolioState, error) {
	positions, err := s.positionRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	balance, err := s.broker.GetBalance(ctx)
	if err != nil {
		return nil, err
	}

	state := &dto.PortfolioState{
		Cash: balance.Cash,
		AsOf: time.Now(),
	}
	for i := range positions {
		p := &positions[i]
		state.PositionValue += p.MarketValue()
		state.RealizedPnL += p.RealizedPnL
	}
	state.TotalValue = state.Cash + state.PositionValue

	for i := range positions {
		p := &positions[i]
		weight := 0.0
		if state.TotalValue > 0 {
			weight = p.MarketValue() / state.TotalValue * 100
		}
		state.Positions = append(state.Positions, dto.PositionState{
			Ticker:           p.Ticker,
			Quantity:         p.Quantity,
			AvgPrice:         p.AvgPrice,
			CurrentPrice:     p.CurrentPrice,
			MarketValue:      p.MarketValue(),
			UnrealizedPnL:    p.UnrealizedPnL(),
			UnrealizedPnLPct: p.UnrealizedPnLPct(),
			WeightPct:        weight,
			StopLossPrice:    p.StopLossPrice,
			TakeProfitPrice:  p.TakeProfitPrice,
		})
	}

	baseline, err := s.snapshotRepo.FindLatestBefore(ctx, utils.TradingDay(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline snapshot: %w", err)
	}
	if baseline != nil && baseline.TotalValue > 0 {
		state.DailyPnL = state.TotalValue - baseline.TotalValue
		state.DailyPnLPct = state.DailyPnL / baseline.TotalValue * 100
	}
	return state, nil
}

// ApplyFill updates the tracked position for a fill. Buys move the average
// price toward the fill price weighted by quantity; sells realize P/L
// against the average cost and remove the position when it reaches zero.
func (s *positionTrackerService) ApplyFill(ctx context.Context, order *entity.Order, fillQuantity int64, fillPrice float64) error {
	if fillQuantity <= 0 {
		return nil
	}
	position, err := s.positionRepo.FindByTicker(ctx, order.Ticker)
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}

	switch order.Side {
	case entity.OrderSideBuy:
		if position == nil {
			position = &entity.Position{
				Ticker:          order.Ticker,
				Quantity:        fillQuantity,
				AvgPrice:        fillPrice,
				CurrentPrice:    fillPrice,
				MaxPrice:        fillPrice,
				StopLossPrice:   fillPrice * (1 - s.riskCfg.StopLossPct/100),
				TakeProfitPrice: fillPrice * (1 + s.riskCfg.TakeProfitPct/100),
				TrailingStopPct: s.riskCfg.TrailingStopPct,
				OpenedAt:        time.Now(),
			}
		} else {
			totalCost := position.CostBasis() + float64(fillQuantity)*fillPrice
			position.Quantity += fillQuantity
			position.AvgPrice = totalCost / float64(position.Quantity)
			position.CurrentPrice = fillPrice
			if fillPrice > position.MaxPrice {
				position.MaxPrice = fillPrice
			}
			// Exit levels follow the new average so stop < avg < take
			// holds after averaging up.
			position.StopLossPrice = position.AvgPrice * (1 - s.riskCfg.StopLossPct/100)
			position.TakeProfitPrice = position.AvgPrice * (1 + s.riskCfg.TakeProfitPct/100)
		}
		return s.positionRepo.Upsert(ctx, position)

	case entity.OrderSideSell:
		if position == nil {
			return &dto.ValidationError{Field: "ticker", Message: fmt.Sprintf("no position in %s to sell", order.Ticker)}
		}
		if fillQuantity > position.Quantity {
			return &dto.ValidationError{
				Field:   "quantity",
				Message: fmt.Sprintf("fill of %d exceeds held quantity %d", fillQuantity, position.Quantity),
			}
		}
		position.RealizedPnL += float64(fillQuantity) * (fillPrice - position.AvgPrice)
		position.Quantity -= fillQuantity
		position.CurrentPrice = fillPrice
		if position.Quantity == 0 {
			s.logger.Info("Position closed",
				logger.StringField("ticker", position.Ticker),
				logger.Float64Field("realized_pnl", position.RealizedPnL),
			)
			return s.positionRepo.Delete(ctx, position.Ticker)
		}
		return s.positionRepo.Upsert(ctx, position)

	default:
		return &dto.ValidationError{Field: "side", Message: fmt.Sprintf("unknown side %q", order.Side)}
	}
}

// RefreshPrices updates each tracked position with the latest quote and
// advances the maximum observed price used by trailing stops.
func (s *positionTrackerService) RefreshPrices(ctx context.Context) ([]entity.Position, error) {
	positions, err := s.positionRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	for i := range positions {
		p := &positions[i]
		quote, err := s.broker.GetPrice(ctx, p.Ticker)
		if err != nil {
			s.logger.Warn("Failed to refresh price", logger.StringField("ticker", p.Ticker), logger.ErrorField(err))
			continue
		}
		p.CurrentPrice = quote.Price
		if quote.Price > p.MaxPrice {
			p.MaxPrice = quote.Price
		}
		if err := s.positionRepo.Upsert(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to update position: %w", err)
		}
	}
	return positions, nil
}

// TakeSnapshot records the portfolio value for the current trading day.
func (s *positionTrackerService) TakeSnapshot(ctx context.Context) (*entity.PortfolioSnapshot, error) {
	if _, err := s.RefreshPrices(ctx); err != nil {
		return nil, err
	}
	state, err := s.GetPortfolioState(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := json.Marshal(state.Positions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal positions: %w", err)
	}
	snapshot := &entity.PortfolioSnapshot{
		Day:           utils.TradingDay(time.Now()),
		Cash:          state.Cash,
		PositionValue: state.PositionValue,
		TotalValue:    state.TotalValue,
		Positions:     positions,
	}
	if err := s.snapshotRepo.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return snapshot, nil
}
