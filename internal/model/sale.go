package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a completed customer transaction. It is written once, inside the
// same transaction that decrements stock, and never updated afterwards.
// FinalAmount = TotalAmount - DiscountAmount.
type Sale struct {
	ID             uint            `gorm:"primaryKey"`
	CustomerName   string          `gorm:"type:varchar(200);index;not null"`
	CustomerEmail  string          `gorm:"type:varchar(254);not null;default:''"`
	CustomerPhone  string          `gorm:"type:varchar(200);not null;default:''"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	FinalAmount    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CreatedByID    *uint           `gorm:"index"`
	// IdempotencyKey is supplied by the client so that a retried request
	// returns the stored sale instead of decrementing stock twice. Unique
	// through a partial index created in infra.RunMigrations.
	IdempotencyKey *string   `gorm:"type:varchar(64)"`
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time

	CreatedBy *User      `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`
	Items     []SaleItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
}

// SaleItem is one line of a Sale. UnitPrice is the discounted price and
// TotalPrice = UnitPrice * Quantity.
type SaleItem struct {
	ID                 uint            `gorm:"primaryKey"`
	SaleID             uint            `gorm:"index;not null"`
	StockBatchID       uint            `gorm:"index;not null"`
	Quantity           int             `gorm:"not null;check:chk_sale_items_quantity,quantity > 0"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TotalPrice         decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	// A sold batch cannot be deleted; its lines belong to an immutable sale.
	StockBatch *StockBatch `gorm:"foreignKey:StockBatchID;constraint:OnDelete:RESTRICT"`
}
