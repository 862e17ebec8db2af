package dto

import "github.com/shopspring/decimal"

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type StockBatchFilter struct {
	ProductID uint   `form:"product"`
	Search    string `form:"search"` // batch number or product name
	Ordering  string `form:"ordering,default=expiration_date" validate:"omitempty,oneof=expiration_date -expiration_date quantity -quantity created_at -created_at"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type StockMovementFilter struct {
	StockBatchID uint   `form:"-"`
	Kind         string `form:"kind" validate:"omitempty,oneof=sale restock adjustment"`
	Page         int    `form:"page,default=1"    validate:"min=1"`
	Limit        int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type StockBatchRequest struct {
	ProductID      uint            `json:"product_id"      validate:"required,min=1"`
	BatchNumber    string          `json:"batch_number"    validate:"required,min=1,max=50"`
	Quantity       int             `json:"quantity"        validate:"min=0"`
	CostPrice      decimal.Decimal `json:"cost_price"      validate:"min=0"`
	SellingPrice   decimal.Decimal `json:"selling_price"   validate:"min=0"`
	ExpirationDate string          `json:"expiration_date" validate:"required,datetime=2006-01-02"`
}

// UpdateStockBatchRequest edits batch metadata. Quantity is not editable here;
// it changes only through sales and POST /v1/stock/:id/restock.
type UpdateStockBatchRequest struct {
	BatchNumber    string          `json:"batch_number"    validate:"required,min=1,max=50"`
	CostPrice      decimal.Decimal `json:"cost_price"      validate:"min=0"`
	SellingPrice   decimal.Decimal `json:"selling_price"   validate:"min=0"`
	ExpirationDate string          `json:"expiration_date" validate:"required,datetime=2006-01-02"`
}

// RestockRequest adjusts a batch by Delta units (negative for write-offs).
type RestockRequest struct {
	Delta  int    `json:"delta"  validate:"required"`
	Reason string `json:"reason" validate:"max=255"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type StockBatchResponse struct {
	ID                  uint   `json:"id"`
	ProductID           uint   `json:"product_id"`
	ProductName         string `json:"product_name"`
	BatchNumber         string `json:"batch_number"`
	Quantity            int    `json:"quantity"`
	CostPrice           string `json:"cost_price"`
	SellingPrice        string `json:"selling_price"`
	ExpirationDate      string `json:"expiration_date"`
	DaysUntilExpiration int    `json:"days_until_expiration"`
	DiscountPercentage  int    `json:"discount_percentage"`
	DiscountedPrice     string `json:"discounted_price"`
	IsLowStock          bool   `json:"is_low_stock"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

type StockBatchListResponse struct {
	Data  []StockBatchResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

type StockMovementResponse struct {
	ID             uint   `json:"id"`
	StockBatchID   uint   `json:"stock_batch_id"`
	Kind           string `json:"kind"`
	Delta          int    `json:"delta"`
	QuantityBefore int    `json:"quantity_before"`
	QuantityAfter  int    `json:"quantity_after"`
	Reason         string `json:"reason"`
	SaleID         *uint  `json:"sale_id"`
	CreatedAt      string `json:"created_at"`
}

type StockMovementListResponse struct {
	Data  []StockMovementResponse `json:"data"`
	Total int64                   `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}
