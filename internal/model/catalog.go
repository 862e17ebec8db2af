package model

import "time"

// Brand is a product manufacturer.
type Brand struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category classifies products (analgesics, antibiotics, ...).
type Category struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides GORM's default pluralization (categorys → categories).
func (Category) TableName() string { return "categories" }

// Product is a sellable item. Stock is tracked per batch, never on the product.
type Product struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"type:varchar(200);index;not null"`
	Description string `gorm:"type:text;not null;default:''"`
	BrandID     uint   `gorm:"index;not null"`
	CategoryID  uint   `gorm:"index;not null"`
	SKU         string `gorm:"column:sku;type:varchar(50);uniqueIndex;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Brand    *Brand    `gorm:"foreignKey:BrandID;constraint:OnDelete:CASCADE"`
	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
}
