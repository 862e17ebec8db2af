package repository

import (
	"context"

	"pharmapos/internal/dto"
	"pharmapos/internal/model"

	"gorm.io/gorm"
)

type StockMovementRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, m *model.StockMovement) error
	List(ctx context.Context, filter dto.StockMovementFilter) ([]model.StockMovement, int64, error)
}

type stockMovementRepo struct{ db *gorm.DB }

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{db: db}
}

func (r *stockMovementRepo) CreateTx(ctx context.Context, tx *gorm.DB, m *model.StockMovement) error {
	return tx.WithContext(ctx).Create(m).Error
}

func (r *stockMovementRepo) List(ctx context.Context, filter dto.StockMovementFilter) ([]model.StockMovement, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.StockMovement{})
	if filter.StockBatchID != 0 {
		q = q.Where("stock_batch_id = ?", filter.StockBatchID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(filter.Page, filter.Limit, 100, 500)

	var movements []model.StockMovement
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&movements).Error
	return movements, total, err
}
