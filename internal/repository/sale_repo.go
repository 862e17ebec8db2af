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

// SalesAggregate is the count and revenue (sum of final amounts) of a set of sales.
type SalesAggregate struct {
	Count   int64
	Revenue decimal.Decimal
}

// ProductSales is one row of a per-product ranking.
type ProductSales struct {
	Name     string
	Revenue  decimal.Decimal
	Quantity int64
}

// MonthlyRevenue is the revenue of one calendar month, Month formatted YYYY-MM.
type MonthlyRevenue struct {
	Month   string
	Revenue decimal.Decimal
}

// SaleRepository defines the data access contract for sales. Time bounds are
// half-open: from is inclusive, until is exclusive; nil means unbounded.
type SaleRepository interface {
	FindByID(ctx context.Context, id uint) (*model.Sale, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Sale, error)
	List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error)

	// Reporting
	Aggregate(ctx context.Context, from, until *time.Time) (SalesAggregate, error)
	CountCustomers(ctx context.Context, from, until *time.Time) (int64, error)
	MonthlyRevenue(ctx context.Context, from time.Time, loc *time.Location) ([]MonthlyRevenue, error)
	ItemRevenue(ctx context.Context, from time.Time) (decimal.Decimal, error)
	TopProductsByRevenue(ctx context.Context, from time.Time, limit int) ([]ProductSales, error)
	TopProductsByQuantity(ctx context.Context, from time.Time, limit int) ([]ProductSales, error)

	// Used inside transactions; callers pass the tx instance.
	CreateTx(ctx context.Context, tx *gorm.DB, s *model.Sale) error
	CreateItemTx(ctx context.Context, tx *gorm.DB, item *model.SaleItem) error
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) CreateTx(ctx context.Context, tx *gorm.DB, s *model.Sale) error {
	// Items are inserted one by one by the caller, after each stock decrement.
	return tx.WithContext(ctx).Omit(clause.Associations).Create(s).Error
}

func (r *saleRepo) CreateItemTx(ctx context.Context, tx *gorm.DB, item *model.SaleItem) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

func (r *saleRepo) withDetail(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sale_items.id ASC") }).
		Preload("Items.StockBatch.Product").
		Preload("CreatedBy")
}

func (r *saleRepo) FindByID(ctx context.Context, id uint) (*model.Sale, error) {
	var s model.Sale
	err := r.withDetail(r.db.WithContext(ctx)).First(&s, id).Error
	return &s, err
}

func (r *saleRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Sale, error) {
	var s model.Sale
	err := r.withDetail(r.db.WithContext(ctx)).Where("idempotency_key = ?", key).First(&s).Error
	return &s, err
}

var saleOrdering = map[string]string{
	"created_at":    "created_at ASC, id ASC",
	"-created_at":   "created_at DESC, id DESC",
	"final_amount":  "final_amount ASC, id ASC",
	"-final_amount": "final_amount DESC, id DESC",
}

func (r *saleRepo) List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Sale{}).Scopes(createdBetween(filter.From, filter.Until))

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("customer_name ILIKE ? OR customer_email ILIKE ? OR customer_phone ILIKE ?", like, like, like)
	}
	if filter.CreatedBy != 0 {
		q = q.Where("created_by_id = ?", filter.CreatedBy)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := saleOrdering[filter.Ordering]
	if !ok {
		order = saleOrdering["-created_at"]
	}
	offset, limit := pageOffset(filter.Page, filter.Limit, 50, 200)
	err := r.withDetail(q).Order(order).Offset(offset).Limit(limit).Find(&sales).Error
	return sales, total, err
}

func (r *saleRepo) Aggregate(ctx context.Context, from, until *time.Time) (SalesAggregate, error) {
	var agg SalesAggregate
	err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Scopes(createdBetween(from, until)).
		Select("COUNT(*) AS count, COALESCE(SUM(final_amount), 0) AS revenue").
		Scan(&agg).Error
	return agg, err
}

func (r *saleRepo) CountCustomers(ctx context.Context, from, until *time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Scopes(createdBetween(from, until)).
		Where("customer_email <> ''").
		Select("COUNT(DISTINCT LOWER(customer_email))").
		Scan(&n).Error
	return n, err
}

func (r *saleRepo) MonthlyRevenue(ctx context.Context, from time.Time, loc *time.Location) ([]MonthlyRevenue, error) {
	var rows []MonthlyRevenue
	err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Select("to_char(date_trunc('month', created_at AT TIME ZONE ?), 'YYYY-MM') AS month, SUM(final_amount) AS revenue", loc.String()).
		Where("created_at >= ?", from).
		Group("month").
		Order("month ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *saleRepo) itemsSince(ctx context.Context, from time.Time) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.SaleItem{}).
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sales.created_at >= ?", from)
}

func (r *saleRepo) ItemRevenue(ctx context.Context, from time.Time) (decimal.Decimal, error) {
	var row struct{ Total decimal.Decimal }
	err := r.itemsSince(ctx, from).
		Select("COALESCE(SUM(sale_items.total_price), 0) AS total").
		Scan(&row).Error
	return row.Total, err
}

func (r *saleRepo) topProducts(ctx context.Context, from time.Time, order string, limit int) ([]ProductSales, error) {
	var rows []ProductSales
	err := r.itemsSince(ctx, from).
		Joins("JOIN stock_batches ON stock_batches.id = sale_items.stock_batch_id").
		Joins("JOIN products ON products.id = stock_batches.product_id").
		Select("products.name AS name, SUM(sale_items.total_price) AS revenue, SUM(sale_items.quantity) AS quantity").
		Group("products.id, products.name").
		Order(order).
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *saleRepo) TopProductsByRevenue(ctx context.Context, from time.Time, limit int) ([]ProductSales, error) {
	return r.topProducts(ctx, from, "revenue DESC, products.name ASC", limit)
}

func (r *saleRepo) TopProductsByQuantity(ctx context.Context, from time.Time, limit int) ([]ProductSales, error) {
	return r.topProducts(ctx, from, "quantity DESC, products.name ASC", limit)
}

func createdBetween(from, until *time.Time) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if from != nil {
			q = q.Where("created_at >= ?", *from)
		}
		if until != nil {
			q = q.Where("created_at < ?", *until)
		}
		return q
	}
}
