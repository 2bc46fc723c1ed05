package repository

import (
	"context"
	"errors"
	"time"

	"golang-ai-trader/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *entity.PortfolioSnapshot) error
	FindByDay(ctx context.Context, day time.Time) (*entity.PortfolioSnapshot, error)
	FindLatestBefore(ctx context.Context, day time.Time) (*entity.PortfolioSnapshot, error)
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Save writes the snapshot for its day, replacing any earlier snapshot taken
// the same day.
func (r *snapshotRepository) Save(ctx context.Context, snapshot *entity.PortfolioSnapshot) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{"cash", "position_value", "total_value", "positions"}),
		}).
		Create(snapshot).Error
}

func (r *snapshotRepository) FindByDay(ctx context.Context, day time.Time) (*entity.PortfolioSnapshot, error) {
	var snapshot entity.PortfolioSnapshot
	err := r.db.WithContext(ctx).Where("day = ?", day).First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// FindLatestBefore returns the most recent snapshot strictly before the
// given day. The daily P/L baseline comes from here.
func (r *snapshotRepository) FindLatestBefore(ctx context.Context, day time.Time) (*entity.PortfolioSnapshot, error) {
	var snapshot entity.PortfolioSnapshot
	err := r.db.WithContext(ctx).
		Where("day < ?", day).
		Order("day DESC").
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
