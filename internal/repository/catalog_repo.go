package repository

import (
	"context"

	"pharmapos/internal/dto"
	"pharmapos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository covers brands, categories and products.
type CatalogRepository interface {
	CreateBrand(ctx context.Context, b *model.Brand) error
	FindBrandByID(ctx context.Context, id uint) (*model.Brand, error)
	ListBrands(ctx context.Context, filter dto.CatalogFilter) ([]model.Brand, int64, error)
	UpdateBrand(ctx context.Context, b *model.Brand) error
	DeleteBrand(ctx context.Context, id uint) error

	CreateCategory(ctx context.Context, c *model.Category) error
	FindCategoryByID(ctx context.Context, id uint) (*model.Category, error)
	ListCategories(ctx context.Context, filter dto.CatalogFilter) ([]model.Category, int64, error)
	UpdateCategory(ctx context.Context, c *model.Category) error
	DeleteCategory(ctx context.Context, id uint) error

	CreateProduct(ctx context.Context, p *model.Product) error
	FindProductByID(ctx context.Context, id uint) (*model.Product, error)
	ListProducts(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

type catalogRepo struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) CatalogRepository { return &catalogRepo{db: db} }

// ── Brands ──────────────────────────────────────────────────────────────────

func (r *catalogRepo) CreateBrand(ctx context.Context, b *model.Brand) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *catalogRepo) FindBrandByID(ctx context.Context, id uint) (*model.Brand, error) {
	var b model.Brand
	err := r.db.WithContext(ctx).First(&b, id).Error
	return &b, err
}

func (r *catalogRepo) ListBrands(ctx context.Context, filter dto.CatalogFilter) ([]model.Brand, int64, error) {
	return listNamed[model.Brand](r.db.WithContext(ctx), filter)
}

func (r *catalogRepo) UpdateBrand(ctx context.Context, b *model.Brand) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *catalogRepo) DeleteBrand(ctx context.Context, id uint) error {
	return deleteByID[model.Brand](r.db.WithContext(ctx), id)
}

// ── Categories ──────────────────────────────────────────────────────────────

func (r *catalogRepo) CreateCategory(ctx context.Context, c *model.Category) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *catalogRepo) FindCategoryByID(ctx context.Context, id uint) (*model.Category, error) {
	var c model.Category
	err := r.db.WithContext(ctx).First(&c, id).Error
	return &c, err
}

func (r *catalogRepo) ListCategories(ctx context.Context, filter dto.CatalogFilter) ([]model.Category, int64, error) {
	return listNamed[model.Category](r.db.WithContext(ctx), filter)
}

func (r *catalogRepo) UpdateCategory(ctx context.Context, c *model.Category) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *catalogRepo) DeleteCategory(ctx context.Context, id uint) error {
	return deleteByID[model.Category](r.db.WithContext(ctx), id)
}

// ── Products ────────────────────────────────────────────────────────────────

func (r *catalogRepo) CreateProduct(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *catalogRepo) FindProductByID(ctx context.Context, id uint) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Preload("Brand").Preload("Category").First(&p, id).Error
	return &p, err
}

func (r *catalogRepo) ListProducts(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Product{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name ILIKE ? OR description ILIKE ? OR sku ILIKE ?", like, like, like)
	}
	if filter.BrandID != 0 {
		q = q.Where("brand_id = ?", filter.BrandID)
	}
	if filter.CategoryID != 0 {
		q = q.Where("category_id = ?", filter.CategoryID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(filter.Page, filter.Limit, 20, 100)
	err := q.Preload("Brand").Preload("Category").
		Order("name ASC, id ASC").Offset(offset).Limit(limit).
		Find(&products).Error
	return products, total, err
}

func (r *catalogRepo) UpdateProduct(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

func (r *catalogRepo) DeleteProduct(ctx context.Context, id uint) error {
	return deleteByID[model.Product](r.db.WithContext(ctx), id)
}

// ── Shared helpers ──────────────────────────────────────────────────────────

func listNamed[T any](db *gorm.DB, filter dto.CatalogFilter) ([]T, int64, error) {
	var rows []T
	var total int64

	q := db.Model(new(T))
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(filter.Page, filter.Limit, 50, 200)
	err := q.Order("name ASC, id ASC").Offset(offset).Limit(limit).Find(&rows).Error
	return rows, total, err
}

func deleteByID[T any](db *gorm.DB, id uint) error {
	res := db.Delete(new(T), id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
