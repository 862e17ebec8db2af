package service

import (
	"context"
	"fmt"
	"time"

	"pharmapos/internal/dto"
	"pharmapos/internal/model"
	"pharmapos/internal/repository"
)

// CatalogService defines business operations for brands, categories and products.
type CatalogService interface {
	CreateBrand(ctx context.Context, req dto.CatalogEntryRequest) (*dto.CatalogEntryResponse, error)
	GetBrand(ctx context.Context, id uint) (*dto.CatalogEntryResponse, error)
	ListBrands(ctx context.Context, filter dto.CatalogFilter) (*dto.CatalogListResponse, error)
	UpdateBrand(ctx context.Context, id uint, req dto.CatalogEntryRequest) (*dto.CatalogEntryResponse, error)
	DeleteBrand(ctx context.Context, id uint) error

	CreateCategory(ctx context.Context, req dto.CatalogEntryRequest) (*dto.CatalogEntryResponse, error)
	GetCategory(ctx context.Context, id uint) (*dto.CatalogEntryResponse, error)
	ListCategories(ctx context.Context, filter dto.CatalogFilter) (*dto.CatalogListResponse, error)
	UpdateCategory(ctx context.Context, id uint, req dto.CatalogEntryRequest) (*dto.CatalogEntryResponse, error)
	DeleteCategory(ctx context.Context, id uint) error

	CreateProduct(ctx context.Context, req dto.ProductRequest) (*dto.ProductResponse, error)
	GetProduct(ctx context.Context, id uint) (*dto.ProductResponse, error)
	ListProducts(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	UpdateProduct(ctx context.Context, id uint, req dto.ProductRequest) (*dto.ProductResponse, error)
	DeleteProduct(ctx context.Context, id uint) error
}

type catalogService struct {
	repo repository.CatalogRepository
}

func NewCatalogService(repo repository.CatalogRepository) CatalogService {
	return &catalogService{repo: repo}
}

// storeErr turns repository errors into service errors for the entity named.
func storeErr(err error, entity string, id uint) error {
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err):
		return notFoundf("%s %d", entity, id)
	case repository.IsUniqueViolation(err):
		return fmt.Errorf("%w: a %s with that name already exists", ErrConflict, entity)
	case repository.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %s %d has stock that appears on recorded sales", ErrConflict, entity, id)
	}
	return err
}

func mapEntry(id uint, name, description string, created, updated time.Time) *dto.CatalogEntryResponse {
	return &dto.CatalogEntryResponse{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   created.Format(time.RFC3339),
		UpdatedAt:   updated.Format(time.RFC3339),
	}
}

func mapBrand(b *model.Brand) *dto.CatalogEntryResponse {
	return mapEntry(b.ID, b.Name, b.Description, b.CreatedAt, b.UpdatedAt)
}

func mapCategory(c *model.Category) *dto.CatalogEntryResponse {
	return mapEntry(c.ID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt)
}

// ── Brands ──────────────────────────────────────────────────────────────────

func (s *catalogService) CreateBrand(ctx context.Context, req dto.CatalogEntryRequest) (*dto.CatalogEntryResponse, error) {
	b := &model.Brand{Name: req.Name, Description: req.Description}
	if err := s.repo.CreateBrand(ctx, b); err != nil {
		return nil, storeErr(err, "brand", 0)
	}
	return mapBrand(b), nil
}

func (s *catalogService) GetBrand(ctx context.Context, id uint) (*dto.CatalogEntryResponse, error) {
	b, err := s.repo.FindBrandByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "brand", id)
	}
	return mapBrand(b), nil
}

func (s *catalogService) ListBrands(ctx context.Context, filter dto.CatalogFilter) (*dto.CatalogListResponse, error) {
	list, total, err := s.repo.ListBrands(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.CatalogEntryResponse, 0, len(list))
	for i := range list {
		data = append(data, *mapBrand(&list[i]))
	}
	return &dto.CatalogListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *catalogService) UpdateBrand(ctx context.Context, id uint, req dto.CatalogEntryRequest) (*dto.CatalogEntryResponse, error) {
	b, err := s.repo.FindBrandByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "brand", id)
	}
	b.Name = req.Name
	b.Description = req.Description
	if err := s.repo.UpdateBrand(ctx, b); err != nil {
		return nil, storeErr(err, "brand", id)
	}
	return mapBrand(b), nil
}

func (s *catalogService) DeleteBrand(ctx context.Context, id uint) error {
	return storeErr(s.repo.DeleteBrand(ctx, id), "brand", id)
}

// ── Categories ──────────────────────────────────────────────────────────────

func (s *catalogService) CreateCategory(ctx context.Context, req dto.CatalogEntryRequest) (*dto.CatalogEntryResponse, error) {
	c := &model.Category{Name: req.Name, Description: req.Description}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, storeErr(err, "category", 0)
	}
	return mapCategory(c), nil
}

func (s *catalogService) GetCategory(ctx context.Context, id uint) (*dto.CatalogEntryResponse, error) {
	c, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "category", id)
	}
	return mapCategory(c), nil
}

func (s *catalogService) ListCategories(ctx context.Context, filter dto.CatalogFilter) (*dto.CatalogListResponse, error) {
	list, total, err := s.repo.ListCategories(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.CatalogEntryResponse, 0, len(list))
	for i := range list {
		data = append(data, *mapCategory(&list[i]))
	}
	return &dto.CatalogListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id uint, req dto.CatalogEntryRequest) (*dto.CatalogEntryResponse, error) {
	c, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "category", id)
	}
	c.Name = req.Name
	c.Description = req.Description
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, storeErr(err, "category", id)
	}
	return mapCategory(c), nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, id uint) error {
	return storeErr(s.repo.DeleteCategory(ctx, id), "category", id)
}

// ── Products ────────────────────────────────────────────────────────────────

func mapProduct(p *model.Product) *dto.ProductResponse {
	r := &dto.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		BrandID:     p.BrandID,
		CategoryID:  p.CategoryID,
		SKU:         p.SKU,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
	if p.Brand != nil {
		r.BrandName = p.Brand.Name
	}
	if p.Category != nil {
		r.CategoryName = p.Category.Name
	}
	return r
}

// resolveRefs loads the brand and category a product request points at.
func (s *catalogService) resolveRefs(ctx context.Context, req dto.ProductRequest) (*model.Brand, *model.Category, error) {
	b, err := s.repo.FindBrandByID(ctx, req.BrandID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, invalidf("brand %d does not exist", req.BrandID)
		}
		return nil, nil, err
	}
	c, err := s.repo.FindCategoryByID(ctx, req.CategoryID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, invalidf("category %d does not exist", req.CategoryID)
		}
		return nil, nil, err
	}
	return b, c, nil
}

func productErr(err error, id uint) error {
	if repository.IsUniqueViolation(err) {
		return fmt.Errorf("%w: a product with that SKU already exists", ErrConflict)
	}
	return storeErr(err, "product", id)
}

func (s *catalogService) CreateProduct(ctx context.Context, req dto.ProductRequest) (*dto.ProductResponse, error) {
	brand, category, err := s.resolveRefs(ctx, req)
	if err != nil {
		return nil, err
	}
	p := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		BrandID:     brand.ID,
		CategoryID:  category.ID,
		SKU:         req.SKU,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, productErr(err, 0)
	}
	p.Brand, p.Category = brand, category
	return mapProduct(p), nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uint) (*dto.ProductResponse, error) {
	p, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "product", id)
	}
	return mapProduct(p), nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	list, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.ProductResponse, 0, len(list))
	for i := range list {
		data = append(data, *mapProduct(&list[i]))
	}
	return &dto.ProductListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uint, req dto.ProductRequest) (*dto.ProductResponse, error) {
	p, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "product", id)
	}
	brand, category, err := s.resolveRefs(ctx, req)
	if err != nil {
		return nil, err
	}
	p.Name = req.Name
	p.Description = req.Description
	p.BrandID, p.CategoryID = brand.ID, category.ID
	p.SKU = req.SKU
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, productErr(err, id)
	}
	p.Brand, p.Category = brand, category
	return mapProduct(p), nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uint) error {
	return storeErr(s.repo.DeleteProduct(ctx, id), "product", id)
}
