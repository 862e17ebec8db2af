package model

import "time"

// Movement kinds.
const (
	MovementSale       = "sale"
	MovementRestock    = "restock"
	MovementAdjustment = "adjustment"
)

// StockMovement records every quantity change of a batch.
// Rows are append-only.
type StockMovement struct {
	ID             uint   `gorm:"primaryKey"`
	StockBatchID   uint   `gorm:"index;not null"`
	Kind           string `gorm:"type:varchar(20);not null"`
	Delta          int    `gorm:"not null"` // positive = in, negative = out
	QuantityBefore int    `gorm:"not null"`
	QuantityAfter  int    `gorm:"not null"`
	Reason         string `gorm:"type:text;not null;default:''"`
	SaleID         *uint  `gorm:"index"`
	CreatedAt      time.Time
}
