package service

import (
	"context"
	"sort"
	"sync"

	"pharmapos/internal/dto"
	"pharmapos/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// memCatalogRepo shares products with memStore so stock tests see the same rows.
type memCatalogRepo struct {
	mu         sync.Mutex
	store      *memStore
	brands     map[uint]*model.Brand
	categories map[uint]*model.Category
	nextID     uint
}

func newMemCatalogRepo(store *memStore) *memCatalogRepo {
	return &memCatalogRepo{store: store, brands: map[uint]*model.Brand{}, categories: map[uint]*model.Category{}}
}

var errDuplicate = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

func (r *memCatalogRepo) CreateBrand(_ context.Context, b *model.Brand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.brands {
		if existing.Name == b.Name {
			return errDuplicate
		}
	}
	r.nextID++
	b.ID = r.nextID
	cp := *b
	r.brands[b.ID] = &cp
	return nil
}

func (r *memCatalogRepo) FindBrandByID(_ context.Context, id uint) (*model.Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brands[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memCatalogRepo) ListBrands(_ context.Context, _ dto.CatalogFilter) ([]model.Brand, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Brand, 0, len(r.brands))
	for _, b := range r.brands {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (r *memCatalogRepo) UpdateBrand(_ context.Context, b *model.Brand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.brands[b.ID] = &cp
	return nil
}

func (r *memCatalogRepo) DeleteBrand(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.brands[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.brands, id)
	return nil
}

func (r *memCatalogRepo) CreateCategory(_ context.Context, c *model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.categories[c.ID] = &cp
	return nil
}

func (r *memCatalogRepo) FindCategoryByID(_ context.Context, id uint) (*model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCatalogRepo) ListCategories(_ context.Context, _ dto.CatalogFilter) ([]model.Category, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (r *memCatalogRepo) UpdateCategory(_ context.Context, c *model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.categories[c.ID] = &cp
	return nil
}

func (r *memCatalogRepo) DeleteCategory(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.categories, id)
	return nil
}

func (r *memCatalogRepo) CreateProduct(_ context.Context, p *model.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.products {
		if existing.SKU == p.SKU {
			return errDuplicate
		}
	}
	p.ID = uint(len(r.store.products) + 1)
	cp := *p
	cp.Brand, cp.Category = nil, nil
	r.store.products[p.ID] = &cp
	return nil
}

func (r *memCatalogRepo) FindProductByID(_ context.Context, id uint) (*model.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memCatalogRepo) ListProducts(_ context.Context, filter dto.ProductFilter) ([]model.Product, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Product
	for _, p := range r.store.products {
		if filter.BrandID != 0 && p.BrandID != filter.BrandID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (r *memCatalogRepo) UpdateProduct(_ context.Context, p *model.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, existing := range r.store.products {
		if id != p.ID && existing.SKU == p.SKU {
			return errDuplicate
		}
	}
	cp := *p
	cp.Brand, cp.Category = nil, nil
	r.store.products[p.ID] = &cp
	return nil
}

func (r *memCatalogRepo) DeleteProduct(_ context.Context, id uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.products[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	for bid, b := range r.store.batches {
		if b.ProductID == id && r.store.batchSold(bid) {
			return errReferenced
		}
	}
	for bid, b := range r.store.batches {
		if b.ProductID == id {
			delete(r.store.batches, bid)
		}
	}
	delete(r.store.products, id)
	return nil
}
