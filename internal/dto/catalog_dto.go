package dto

// ─── Filter / Pagination ─────────────────────────────────────────────────────

// CatalogFilter is shared by the brand and category listings.
type CatalogFilter struct {
	Search string `form:"search"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type ProductFilter struct {
	Search     string `form:"search"` // name, description or SKU
	BrandID    uint   `form:"brand"`
	CategoryID uint   `form:"category"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CatalogEntryRequest is the body for creating or updating a brand or category.
type CatalogEntryRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

type ProductRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
	BrandID     uint   `json:"brand_id"    validate:"required,min=1"`
	CategoryID  uint   `json:"category_id" validate:"required,min=1"`
	SKU         string `json:"sku"         validate:"required,min=1,max=50"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CatalogEntryResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type CatalogListResponse struct {
	Data  []CatalogEntryResponse `json:"data"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Limit int                    `json:"limit"`
}

type ProductResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	BrandID      uint   `json:"brand_id"`
	BrandName    string `json:"brand_name"`
	CategoryID   uint   `json:"category_id"`
	CategoryName string `json:"category_name"`
	SKU          string `json:"sku"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ProductListResponse struct {
	Data  []ProductResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
