package service

import (
	"context"
	"fmt"
	"time"

	"pharmapos/internal/dto"
	"pharmapos/internal/model"
	"pharmapos/internal/pricing"
	"pharmapos/internal/repository"

	"github.com/rs/zerolog/log"
)

type StockService interface {
	Create(ctx context.Context, req dto.StockBatchRequest) (*dto.StockBatchResponse, error)
	Get(ctx context.Context, id uint) (*dto.StockBatchResponse, error)
	List(ctx context.Context, filter dto.StockBatchFilter) (*dto.StockBatchListResponse, error)
	Update(ctx context.Context, id uint, req dto.UpdateStockBatchRequest) (*dto.StockBatchResponse, error)
	Delete(ctx context.Context, id uint) error
	Restock(ctx context.Context, id uint, req dto.RestockRequest) (*dto.StockBatchResponse, error)
	Movements(ctx context.Context, id uint, filter dto.StockMovementFilter) (*dto.StockMovementListResponse, error)
}

type stockService struct {
	batches   repository.StockBatchRepository
	movements repository.StockMovementRepository
	catalog   repository.CatalogRepository
	ledger    *StockLedger
	cache     InventoryCache // optional
	loc       *time.Location
	lowStock  int
	now       func() time.Time
}

func NewStockService(
	batches repository.StockBatchRepository,
	movements repository.StockMovementRepository,
	catalog repository.CatalogRepository,
	ledger *StockLedger,
	cache InventoryCache,
	loc *time.Location,
	lowStockThreshold int,
) StockService {
	if loc == nil {
		loc = time.UTC
	}
	return &stockService{
		batches:   batches,
		movements: movements,
		catalog:   catalog,
		ledger:    ledger,
		cache:     cache,
		loc:       loc,
		lowStock:  lowStockThreshold,
		now:       time.Now,
	}
}

func (s *stockService) Create(ctx context.Context, req dto.StockBatchRequest) (*dto.StockBatchResponse, error) {
	product, err := s.catalog.FindProductByID(ctx, req.ProductID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, invalidf("product %d does not exist", req.ProductID)
		}
		return nil, err
	}
	expiration, err := parseDate(req.ExpirationDate, time.UTC)
	if err != nil {
		return nil, err
	}

	b := &model.StockBatch{
		ProductID:      product.ID,
		BatchNumber:    req.BatchNumber,
		Quantity:       req.Quantity,
		CostPrice:      req.CostPrice.Round(pricing.MoneyPlaces),
		SellingPrice:   req.SellingPrice.Round(pricing.MoneyPlaces),
		ExpirationDate: expiration,
	}
	if err := s.ledger.Open(ctx, b); err != nil {
		return nil, err
	}
	b.Product = product
	s.invalidate(ctx)

	log.Info().Uint("batch_id", b.ID).Uint("product_id", b.ProductID).Int("quantity", b.Quantity).Msg("stock batch created")
	return s.toResponse(b), nil
}

func (s *stockService) Get(ctx context.Context, id uint) (*dto.StockBatchResponse, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(b), nil
}

func (s *stockService) List(ctx context.Context, filter dto.StockBatchFilter) (*dto.StockBatchListResponse, error) {
	batches, total, err := s.batches.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.StockBatchListResponse{
		Data:  batchesToResponse(batches, s.now().In(s.loc), s.lowStock),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *stockService) Update(ctx context.Context, id uint, req dto.UpdateStockBatchRequest) (*dto.StockBatchResponse, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	expiration, err := parseDate(req.ExpirationDate, time.UTC)
	if err != nil {
		return nil, err
	}
	b.BatchNumber = req.BatchNumber
	b.CostPrice = req.CostPrice.Round(pricing.MoneyPlaces)
	b.SellingPrice = req.SellingPrice.Round(pricing.MoneyPlaces)
	b.ExpirationDate = expiration
	if err := s.batches.Update(ctx, b); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.toResponse(b), nil
}

func (s *stockService) Delete(ctx context.Context, id uint) error {
	if err := s.batches.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFoundf("stock batch %d", id)
		}
		if repository.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: stock batch %d appears on recorded sales", ErrConflict, id)
		}
		return err
	}
	s.invalidate(ctx)
	log.Info().Uint("batch_id", id).Msg("stock batch deleted")
	return nil
}

func (s *stockService) Restock(ctx context.Context, id uint, req dto.RestockRequest) (*dto.StockBatchResponse, error) {
	b, err := s.ledger.Restock(ctx, id, req.Delta, req.Reason)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.toResponse(b), nil
}

func (s *stockService) Movements(ctx context.Context, id uint, filter dto.StockMovementFilter) (*dto.StockMovementListResponse, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	filter.StockBatchID = id
	movements, total, err := s.movements.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.StockMovementResponse, 0, len(movements))
	for _, m := range movements {
		data = append(data, dto.StockMovementResponse{
			ID:             m.ID,
			StockBatchID:   m.StockBatchID,
			Kind:           m.Kind,
			Delta:          m.Delta,
			QuantityBefore: m.QuantityBefore,
			QuantityAfter:  m.QuantityAfter,
			Reason:         m.Reason,
			SaleID:         m.SaleID,
			CreatedAt:      m.CreatedAt.In(s.loc).Format(time.RFC3339),
		})
	}
	return &dto.StockMovementListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *stockService) find(ctx context.Context, id uint) (*model.StockBatch, error) {
	b, err := s.batches.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFoundf("stock batch %d", id)
		}
		return nil, err
	}
	return b, nil
}

func (s *stockService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateInventoryValue(ctx); err != nil {
		log.Warn().Err(err).Msg("inventory value cache invalidation failed")
	}
}

func (s *stockService) toResponse(b *model.StockBatch) *dto.StockBatchResponse {
	r := batchToResponse(b, s.now().In(s.loc), s.lowStock)
	return &r
}

// batchToResponse prices b as of asOf so clients see the markdown a sale
// created now would apply.
func batchToResponse(b *model.StockBatch, asOf time.Time, lowStock int) dto.StockBatchResponse {
	quote := pricing.QuoteFor(b.SellingPrice, b.ExpirationDate, asOf)
	return dto.StockBatchResponse{
		ID:                  b.ID,
		ProductID:           b.ProductID,
		ProductName:         b.ProductName(),
		BatchNumber:         b.BatchNumber,
		Quantity:            b.Quantity,
		CostPrice:           money(b.CostPrice),
		SellingPrice:        money(b.SellingPrice),
		ExpirationDate:      b.ExpirationDate.Format(dateLayout),
		DaysUntilExpiration: pricing.DaysUntil(b.ExpirationDate, asOf),
		DiscountPercentage:  quote.DiscountPercentage,
		DiscountedPrice:     money(quote.UnitPrice),
		IsLowStock:          b.Quantity <= lowStock,
		CreatedAt:           b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           b.UpdatedAt.Format(time.RFC3339),
	}
}

func batchesToResponse(batches []model.StockBatch, asOf time.Time, lowStock int) []dto.StockBatchResponse {
	out := make([]dto.StockBatchResponse, 0, len(batches))
	for i := range batches {
		out = append(out, batchToResponse(&batches[i], asOf, lowStock))
	}
	return out
}
