package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockBatch is a tracked lot of a product with its own quantity, prices and
// expiration date. Quantity never goes below zero; it only changes through the
// stock ledger (sales) or an administrative restock.
type StockBatch struct {
	ID             uint            `gorm:"primaryKey"`
	ProductID      uint            `gorm:"index;not null"`
	BatchNumber    string          `gorm:"type:varchar(50);index;not null"`
	Quantity       int             `gorm:"not null;check:chk_stock_batches_quantity,quantity >= 0"`
	CostPrice      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	SellingPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ExpirationDate time.Time       `gorm:"type:date;index;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// ProductName returns the preloaded product name, or "" when not loaded.
func (b *StockBatch) ProductName() string {
	if b.Product == nil {
		return ""
	}
	return b.Product.Name
}
