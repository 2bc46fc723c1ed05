package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang-ai-trader/internal/entity"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/internal/trader/repository"
	"golang-ai-trader/pkg/common"
	"golang-ai-trader/pkg/logger"
	"golang-ai-trader/pkg/metrics"
	"golang-ai-trader/pkg/redis"
	"golang-ai-trader/pkg/telegram"
	"golang-ai-trader/pkg/utils"

	"github.com/google/uuid"
)

// OrderManagerService owns the order lifecycle: submission, reconciliation
// against the broker, and the automatic stop-loss and take-profit sweep.
type OrderManagerService interface {
	SubmitOrder(ctx context.Context, intent *dto.TradeIntent) (*entity.Order, error)
	CancelOrder(ctx context.Context, orderNumber string) (*entity.Order, error)
	Reconcile(ctx context.Context) error
	SweepExits(ctx context.Context) ([]entity.Order, error)
	ActiveOrders(ctx context.Context) ([]entity.Order, error)
	OrderHistory(ctx context.Context, ticker string, limit int) ([]entity.Order, error)
}

type orderManagerService struct {
	logger    *logger.Logger
	orderRepo repository.OrderRepository
	broker    repository.BrokerRepository
	risk      RiskManagerService
	tracker   PositionTrackerService
	redis     *redis.Client
	notifier  telegram.Notifier
	metrics   *metrics.Metrics
}

func NewOrderManagerService(
	log *logger.Logger,
	orderRepo repository.OrderRepository,
	broker repository.BrokerRepository,
	risk RiskManagerService,
	tracker PositionTrackerService,
	redisClient *redis.Client,
	notifier telegram.Notifier,
	m *metrics.Metrics,
) OrderManagerService {
	return &orderManagerService{
		logger:    log,
		orderRepo: orderRepo,
		broker:    broker,
		risk:      risk,
		tracker:   tracker,
		redis:     redisClient,
		notifier:  notifier,
		metrics:   m,
	}
}

// SubmitOrder runs the intent through risk checks, records it, and sends it
// to the broker. A submission whose outcome cannot be determined is marked
// UNKNOWN and left for reconciliation instead of being retried, since the
// broker may already hold it.
func (s *orderManagerService) SubmitOrder(ctx context.Context, intent *dto.TradeIntent) (*entity.Order, error) {
	if err := s.risk.EvaluateTrade(ctx, intent); err != nil {
		return nil, err
	}

	order := &entity.Order{
		OrderNumber: "ORD-" + uuid.NewString(),
		Ticker:      intent.Ticker,
		Side:        intent.Side,
		Quantity:    intent.Quantity,
		LimitPrice:  intent.Price,
		Status:      entity.OrderStatusSubmitted,
		Reason:      intent.Reason,
		SubmittedAt: time.Now(),
	}
	if order.Reason == "" {
		order.Reason = entity.OrderReasonDecision
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	ack, err := s.broker.SubmitOrder(ctx, &dto.SubmitOrderRequest{
		OrderNumber: order.OrderNumber,
		Ticker:      order.Ticker,
		Side:        order.Side,
		Quantity:    order.Quantity,
		LimitPrice:  order.LimitPrice,
	})
	if err != nil {
		s.logger.Error("Order submission outcome unknown",
			logger.StringField("order_number", order.OrderNumber),
			logger.ErrorField(err),
		)
		s.transition(ctx, order, entity.OrderStatusUnknown)
		return order, nil
	}

	order.BrokerOrderID = ack.BrokerOrderID
	status := mapBrokerStatus(ack.Status)
	if status == entity.OrderStatusUnknown {
		s.logger.Warn("Ambiguous broker acknowledgement",
			logger.StringField("order_number", order.OrderNumber),
			logger.StringField("broker_status", ack.Status),
		)
	}
	s.transition(ctx, order, status)
	return order, nil
}

func (s *orderManagerService) CancelOrder(ctx context.Context, orderNumber string) (*entity.Order, error) {
	order, err := s.orderRepo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.IsTerminal() {
		return nil, &dto.ValidationError{
			Field:   "order_number",
			Message: fmt.Sprintf("order %s is already %s", orderNumber, order.Status),
		}
	}
	if err := s.broker.CancelOrder(ctx, order.BrokerOrderID); err != nil {
		return nil, err
	}
	s.transition(ctx, order, entity.OrderStatusCancelled)
	return order, nil
}

// Reconcile polls the broker for every active order and applies status and
// fill changes. Fill deltas flow into the position tracker with the broker's
// average fill price.
func (s *orderManagerService) Reconcile(ctx context.Context) error {
	orders, err := s.orderRepo.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active orders: %w", err)
	}
	for i := range orders {
		order := &orders[i]
		if order.BrokerOrderID == "" {
			// Submission never got an acknowledgement. Leave it UNKNOWN
			// until an operator resolves it against the broker.
			continue
		}
		status, err := s.broker.GetOrderStatus(ctx, order.BrokerOrderID)
		if err != nil {
			s.logger.Warn("Failed to poll order status",
				logger.StringField("order_number", order.OrderNumber),
				logger.ErrorField(err),
			)
			continue
		}
		s.applyBrokerStatus(ctx, order, status)
	}
	return nil
}

func (s *orderManagerService) applyBrokerStatus(ctx context.Context, order *entity.Order, status *dto.BrokerOrderStatus) {
	fillDelta := status.FilledQuantity - order.FilledQuantity
	if fillDelta > 0 {
		if err := s.tracker.ApplyFill(ctx, order, fillDelta, status.AvgFillPrice); err != nil {
			s.logger.Error("Failed to apply fill",
				logger.StringField("order_number", order.OrderNumber),
				logger.ErrorField(err),
			)
			return
		}
		order.FilledQuantity = status.FilledQuantity
		order.AvgFillPrice = status.AvgFillPrice
	}

	next := mapBrokerStatus(status.Status)
	if next == order.Status {
		if fillDelta > 0 {
			if err := s.orderRepo.Update(ctx, order); err != nil {
				s.logger.Error("Failed to update order", logger.StringField("order_number", order.OrderNumber), logger.ErrorField(err))
			}
		}
		return
	}
	if next == entity.OrderStatusFilled || next == entity.OrderStatusCancelled {
		order.CompletedAt = utils.ToPointer(time.Now())
		if status.CompletedAt != nil {
			order.CompletedAt = status.CompletedAt
		}
	}
	s.transition(ctx, order, next)
}

// transition guards the state machine and persists the move. Invalid
// transitions are logged and dropped; terminal states never move again.
func (s *orderManagerService) transition(ctx context.Context, order *entity.Order, next string) {
	if !order.CanTransitionTo(next) {
		s.logger.Warn("Ignoring invalid order transition",
			logger.StringField("order_number", order.OrderNumber),
			logger.StringField("from", order.Status),
			logger.StringField("to", next),
		)
		return
	}
	order.Status = next
	if err := s.orderRepo.Update(ctx, order); err != nil {
		s.logger.Error("Failed to persist order transition",
			logger.StringField("order_number", order.OrderNumber),
			logger.ErrorField(err),
		)
		return
	}
	if order.IsTerminal() {
		s.metrics.OrdersTotal.WithLabelValues(order.Side, order.Status).Inc()
	}
	s.logger.Info("Order transitioned",
		logger.StringField("order_number", order.OrderNumber),
		logger.StringField("status", order.Status),
		logger.Float64Field("fill_rate", order.FillRate()),
	)
}

// SweepExits closes positions whose stop-loss or take-profit triggered. A
// per-ticker redis lock keeps concurrent sweeps from double-selling, and a
// ticker with an active order in flight is skipped until it settles.
func (s *orderManagerService) SweepExits(ctx context.Context) ([]entity.Order, error) {
	exits, err := s.risk.CheckExitTriggers(ctx)
	if err != nil {
		return nil, err
	}

	var submitted []entity.Order
	for _, exit := range exits {
		lock := s.redis.NewLock(common.RedisKeyTickerLock + ":" + exit.Ticker)
		acquired, err := lock.Acquire(ctx, 30*time.Second)
		if err != nil || !acquired {
			s.logger.Warn("Skipping exit, ticker locked", logger.StringField("ticker", exit.Ticker))
			continue
		}

		order, err := s.sweepOne(ctx, exit)
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			s.logger.Warn("Failed to release ticker lock", logger.StringField("ticker", exit.Ticker), logger.ErrorField(releaseErr))
		}
		if err != nil {
			s.logger.Error("Failed to submit exit order",
				logger.StringField("ticker", exit.Ticker),
				logger.ErrorField(err),
			)
			continue
		}
		if order != nil {
			submitted = append(submitted, *order)
		}
	}
	return submitted, nil
}

func (s *orderManagerService) sweepOne(ctx context.Context, exit dto.TriggeredExit) (*entity.Order, error) {
	active, err := s.orderRepo.FindActiveByTicker(ctx, exit.Ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to check active orders: %w", err)
	}
	if len(active) > 0 {
		s.logger.Info("Skipping exit, order already in flight", logger.StringField("ticker", exit.Ticker))
		return nil, nil
	}

	order, err := s.SubmitOrder(ctx, &dto.TradeIntent{
		Ticker:   exit.Ticker,
		Side:     entity.OrderSideSell,
		Quantity: exit.Quantity,
		Price:    exit.CurrentPrice,
		Reason:   exit.Kind,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AutoExitsTotal.WithLabelValues(strings.ToLower(exit.Kind)).Inc()
	if err := s.notifier.NotifyAutoExit(exit.Kind, exit.Ticker, exit.Quantity, exit.TriggerPrice, exit.CurrentPrice, order.OrderNumber); err != nil {
		s.logger.Warn("Failed to send exit notification", logger.ErrorField(err))
	}
	return order, nil
}

func (s *orderManagerService) ActiveOrders(ctx context.Context) ([]entity.Order, error) {
	return s.orderRepo.FindActive(ctx)
}

func (s *orderManagerService) OrderHistory(ctx context.Context, ticker string, limit int) ([]entity.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.orderRepo.FindHistory(ctx, ticker, limit)
}

// mapBrokerStatus translates broker status strings into lifecycle statuses.
// Anything unrecognized is UNKNOWN so reconciliation keeps polling it.
func mapBrokerStatus(brokerStatus string) string {
	switch strings.ToUpper(brokerStatus) {
	case "ACCEPTED", "NEW", "PENDING", "OPEN":
		return entity.OrderStatusPending
	case "PARTIAL", "PARTIAL_FILLED", "PARTIALLY_FILLED":
		return entity.OrderStatusPartialFilled
	case "FILLED", "EXECUTED":
		return entity.OrderStatusFilled
	case "CANCELLED", "CANCELED":
		return entity.OrderStatusCancelled
	case "REJECTED", "DENIED":
		return entity.OrderStatusRejected
	default:
		return entity.OrderStatusUnknown
	}
}
