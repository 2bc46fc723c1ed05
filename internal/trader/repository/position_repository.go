package repository

import (
	"context"
	"errors"

	"golang-ai-trader/internal/entity"

	"gorm.io/gorm"
)

type PositionRepository interface {
	Upsert(ctx context.Context, position *entity.Position) error
	Delete(ctx context.Context, ticker string) error
	FindByTicker(ctx context.Context, ticker string) (*entity.Position, error)
	FindAll(ctx context.Context) ([]entity.Position, error)
}

type positionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) Upsert(ctx context.Context, position *entity.Position) error {
	return r.db.WithContext(ctx).Save(position).Error
}

func (r *positionRepository) Delete(ctx context.Context, ticker string) error {
	return r.db.WithContext(ctx).Where("ticker = ?", ticker).Delete(&entity.Position{}).Error
}

// FindByTicker returns nil without error when no position exists for the
// ticker.
func (r *positionRepository) FindByTicker(ctx context.Context, ticker string) (*entity.Position, error) {
	var position entity.Position
	err := r.db.WithContext(ctx).Where("ticker = ?", ticker).First(&position).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}

func (r *positionRepository) FindAll(ctx context.Context) ([]entity.Position, error) {
	var positions []entity.Position
	err := r.db.WithContext(ctx).Order("ticker ASC").Find(&positions).Error
	return positions, err
}
