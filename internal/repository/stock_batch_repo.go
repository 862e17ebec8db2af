package repository

import (
	"context"
	"time"

	"pharmapos/internal/dto"
	"pharmapos/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryTotals aggregates every stock batch. Values are quantity-weighted.
type InventoryTotals struct {
	Batches      int64
	Quantity     int64
	CostValue    decimal.Decimal
	SellingValue decimal.Decimal
}

// StockBatchRepository defines the data access contract for stock batches.
type StockBatchRepository interface {
	FindByID(ctx context.Context, id uint) (*model.StockBatch, error)
	List(ctx context.Context, filter dto.StockBatchFilter) ([]model.StockBatch, int64, error)
	Update(ctx context.Context, b *model.StockBatch) error
	Delete(ctx context.Context, id uint) error

	// ListExpiring returns batches whose expiration date falls in [from, until].
	ListExpiring(ctx context.Context, from, until time.Time) ([]model.StockBatch, error)
	ListLowStock(ctx context.Context, threshold int) ([]model.StockBatch, error)
	CountExpiring(ctx context.Context, from, until time.Time) (int64, error)
	CountLowStock(ctx context.Context, threshold int) (int64, error)
	Totals(ctx context.Context) (InventoryTotals, error)

	// Used inside transactions; callers pass the tx instance.
	CreateTx(ctx context.Context, tx *gorm.DB, b *model.StockBatch) error

	// FindForUpdateTx reads a batch and holds its row lock until tx ends.
	FindForUpdateTx(ctx context.Context, tx *gorm.DB, id uint) (*model.StockBatch, error)
	// AddQuantityTx applies delta only if the result stays non-negative.
	// It returns false when the guard rejected the update.
	AddQuantityTx(ctx context.Context, tx *gorm.DB, id uint, delta int) (bool, error)
}

type stockBatchRepo struct{ db *gorm.DB }

func NewStockBatchRepository(db *gorm.DB) StockBatchRepository { return &stockBatchRepo{db: db} }

func (r *stockBatchRepo) CreateTx(ctx context.Context, tx *gorm.DB, b *model.StockBatch) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(b).Error
}

func (r *stockBatchRepo) FindByID(ctx context.Context, id uint) (*model.StockBatch, error) {
	var b model.StockBatch
	err := r.db.WithContext(ctx).Preload("Product").First(&b, id).Error
	return &b, err
}

var batchOrdering = map[string]string{
	"expiration_date":  "stock_batches.expiration_date ASC, stock_batches.id ASC",
	"-expiration_date": "stock_batches.expiration_date DESC, stock_batches.id DESC",
	"quantity":         "stock_batches.quantity ASC, stock_batches.id ASC",
	"-quantity":        "stock_batches.quantity DESC, stock_batches.id DESC",
	"created_at":       "stock_batches.created_at ASC, stock_batches.id ASC",
	"-created_at":      "stock_batches.created_at DESC, stock_batches.id DESC",
}

func (r *stockBatchRepo) List(ctx context.Context, filter dto.StockBatchFilter) ([]model.StockBatch, int64, error) {
	var batches []model.StockBatch
	var total int64

	q := r.db.WithContext(ctx).Model(&model.StockBatch{}).
		Joins("JOIN products ON products.id = stock_batches.product_id")

	if filter.ProductID != 0 {
		q = q.Where("stock_batches.product_id = ?", filter.ProductID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("stock_batches.batch_number ILIKE ? OR products.name ILIKE ?", like, like)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := batchOrdering[filter.Ordering]
	if !ok {
		order = batchOrdering["expiration_date"]
	}
	offset, limit := pageOffset(filter.Page, filter.Limit, 50, 200)
	err := q.Preload("Product").Order(order).Offset(offset).Limit(limit).Find(&batches).Error
	return batches, total, err
}

func (r *stockBatchRepo) Update(ctx context.Context, b *model.StockBatch) error {
	// Quantity is owned by the ledger; metadata edits must not overwrite it.
	return r.db.WithContext(ctx).Model(b).
		Select("batch_number", "cost_price", "selling_price", "expiration_date", "updated_at").
		Updates(b).Error
}

func (r *stockBatchRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.StockBatch{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *stockBatchRepo) expiringScope(from, until time.Time) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("expiration_date BETWEEN ?::date AND ?::date", dateParam(from), dateParam(until))
	}
}

func (r *stockBatchRepo) ListExpiring(ctx context.Context, from, until time.Time) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	err := r.db.WithContext(ctx).Scopes(r.expiringScope(from, until)).
		Preload("Product").
		Order("expiration_date ASC, id ASC").
		Find(&batches).Error
	return batches, err
}

func (r *stockBatchRepo) ListLowStock(ctx context.Context, threshold int) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	err := r.db.WithContext(ctx).Where("quantity <= ?", threshold).
		Preload("Product").
		Order("quantity ASC, id ASC").
		Find(&batches).Error
	return batches, err
}

func (r *stockBatchRepo) CountExpiring(ctx context.Context, from, until time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.StockBatch{}).Scopes(r.expiringScope(from, until)).Count(&n).Error
	return n, err
}

func (r *stockBatchRepo) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.StockBatch{}).Where("quantity <= ?", threshold).Count(&n).Error
	return n, err
}

func (r *stockBatchRepo) Totals(ctx context.Context) (InventoryTotals, error) {
	var t InventoryTotals
	err := r.db.WithContext(ctx).Model(&model.StockBatch{}).
		Select(`COUNT(*) AS batches,
			COALESCE(SUM(quantity), 0) AS quantity,
			COALESCE(SUM(cost_price * quantity), 0) AS cost_value,
			COALESCE(SUM(selling_price * quantity), 0) AS selling_value`).
		Scan(&t).Error
	return t, err
}

func (r *stockBatchRepo) FindForUpdateTx(ctx context.Context, tx *gorm.DB, id uint) (*model.StockBatch, error) {
	var b model.StockBatch
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&b).Error
	if err != nil {
		return nil, err
	}
	// Loaded separately so the row lock stays on stock_batches only.
	var p model.Product
	if err := tx.WithContext(ctx).Take(&p, b.ProductID).Error; err != nil {
		return nil, err
	}
	b.Product = &p
	return &b, nil
}

func (r *stockBatchRepo) AddQuantityTx(ctx context.Context, tx *gorm.DB, id uint, delta int) (bool, error) {
	res := tx.WithContext(ctx).Model(&model.StockBatch{}).
		Where("id = ? AND quantity + ? >= 0", id, delta).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// dateParam renders t's calendar date in its own location.
func dateParam(t time.Time) string {
	return t.Format("2006-01-02")
}
