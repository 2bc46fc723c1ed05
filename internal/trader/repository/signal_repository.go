package repository

import (
	"context"

	"golang-ai-trader/internal/entity"

	"gorm.io/gorm"
)

type SignalRepository interface {
	Create(ctx context.Context, signal *entity.TradingSignal) error
	FindRecentByTicker(ctx context.Context, ticker string, limit int) ([]entity.TradingSignal, error)
	FindLatest(ctx context.Context, limit int) ([]entity.TradingSignal, error)
}

type signalRepository struct {
	db *gorm.DB
}

func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

func (r *signalRepository) Create(ctx context.Context, signal *entity.TradingSignal) error {
	return r.db.WithContext(ctx).Create(signal).Error
}

func (r *signalRepository) FindRecentByTicker(ctx context.Context, ticker string, limit int) ([]entity.TradingSignal, error) {
	var signals []entity.TradingSignal
	err := r.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("created_at DESC").
		Limit(limit).
		Find(&signals).Error
	return signals, err
}

func (r *signalRepository) FindLatest(ctx context.Context, limit int) ([]entity.TradingSignal, error) {
	var signals []entity.TradingSignal
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&signals).Error
	return signals, err
}
