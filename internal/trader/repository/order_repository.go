package repository

import (
	"context"

	"golang-ai-trader/internal/entity"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	FindByOrderNumber(ctx context.Context, orderNumber string) (*entity.Order, error)
	FindActive(ctx context.Context) ([]entity.Order, error)
	FindActiveByTicker(ctx context.Context, ticker string) ([]entity.Order, error)
	FindRecentFilled(ctx context.Context, limit int) ([]entity.Order, error)
	FindHistory(ctx context.Context, ticker string, limit int) ([]entity.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) Update(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *orderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*entity.Order, error) {
	var order entity.Order
	if err := r.db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindActive(ctx context.Context) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			entity.OrderStatusSubmitted,
			entity.OrderStatusPending,
			entity.OrderStatusPartialFilled,
			entity.OrderStatusUnknown,
		}).
		Order("submitted_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) FindActiveByTicker(ctx context.Context, ticker string) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.db.WithContext(ctx).
		Where("ticker = ? AND status IN ?", ticker, []string{
			entity.OrderStatusSubmitted,
			entity.OrderStatusPending,
			entity.OrderStatusPartialFilled,
			entity.OrderStatusUnknown,
		}).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) FindRecentFilled(ctx context.Context, limit int) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.OrderStatusFilled).
		Order("completed_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) FindHistory(ctx context.Context, ticker string, limit int) ([]entity.Order, error) {
	var orders []entity.Order
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if ticker != "" {
		q = q.Where("ticker = ?", ticker)
	}
	err := q.Find(&orders).Error
	return orders, err
}
