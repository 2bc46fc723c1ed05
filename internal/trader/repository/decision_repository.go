package repository

import (
	"context"

	"golang-ai-trader/internal/entity"

	"gorm.io/gorm"
)

type DecisionRepository interface {
	Create(ctx context.Context, record *entity.DecisionRecord) error
	Update(ctx context.Context, record *entity.DecisionRecord) error
	FindRecent(ctx context.Context, limit int) ([]entity.DecisionRecord, error)
}

type decisionRepository struct {
	db *gorm.DB
}

func NewDecisionRepository(db *gorm.DB) DecisionRepository {
	return &decisionRepository{db: db}
}

func (r *decisionRepository) Create(ctx context.Context, record *entity.DecisionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *decisionRepository) Update(ctx context.Context, record *entity.DecisionRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *decisionRepository) FindRecent(ctx context.Context, limit int) ([]entity.DecisionRecord, error) {
	var records []entity.DecisionRecord
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
