package dto

import "time"

// ─── Filter / List ──────────────────────────────────────────────────────────

// SaleFilter is bound from the query string of GET /v1/sales.
type SaleFilter struct {
	Search    string `form:"search"`     // customer name, email or phone
	CreatedBy uint   `form:"created_by"` // 0 = any
	Date      string `form:"date"`       // YYYY-MM-DD; empty = all dates
	Ordering  string `form:"ordering,default=-created_at" validate:"omitempty,oneof=created_at -created_at final_amount -final_amount"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`

	// From/Until are resolved by the service from Date in the configured
	// time zone; Until is exclusive.
	From  *time.Time `form:"-"`
	Until *time.Time `form:"-"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SaleItemRequest struct {
	StockBatchID uint `json:"stock_batch_id" validate:"required,min=1"`
	Quantity     int  `json:"quantity"       validate:"required,min=1"`
}

type CreateSaleRequest struct {
	CustomerName  string            `json:"customer_name"  validate:"required,max=200"`
	CustomerEmail string            `json:"customer_email" validate:"omitempty,email,max=254"`
	CustomerPhone string            `json:"customer_phone" validate:"omitempty,max=200"`
	Items         []SaleItemRequest `json:"items"          validate:"required,min=1,dive"`
	// IdempotencyKey lets a client retry a timed-out request without
	// creating the sale twice.
	IdempotencyKey *string `json:"idempotency_key" validate:"omitempty,uuid"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// Money fields are decimal strings with two fixed places.
type SaleItemResponse struct {
	ID                 uint   `json:"id"`
	StockBatchID       uint   `json:"stock_batch_id"`
	BatchNumber        string `json:"batch_number"`
	ProductName        string `json:"product_name"`
	Quantity           int    `json:"quantity"`
	UnitPrice          string `json:"unit_price"`
	DiscountPercentage string `json:"discount_percentage"`
	TotalPrice         string `json:"total_price"`
}

type SaleResponse struct {
	ID             uint               `json:"id"`
	CustomerName   string             `json:"customer_name"`
	CustomerEmail  string             `json:"customer_email"`
	CustomerPhone  string             `json:"customer_phone"`
	TotalAmount    string             `json:"total_amount"`
	DiscountAmount string             `json:"discount_amount"`
	FinalAmount    string             `json:"final_amount"`
	CreatedBy      *uint              `json:"created_by"`
	CreatedByName  string             `json:"created_by_name,omitempty"`
	IdempotencyKey *string            `json:"idempotency_key,omitempty"`
	CreatedAt      string             `json:"created_at"`
	Items          []SaleItemResponse `json:"items"`
}
