package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pharmapos/internal/dto"
	"pharmapos/internal/model"
	"pharmapos/internal/pricing"
	"pharmapos/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleService interface {
	CreateSale(ctx context.Context, actorID *uint, req dto.CreateSaleRequest) (*dto.SaleResponse, error)
	GetSale(ctx context.Context, id uint) (*dto.SaleResponse, error)
	ListSales(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error)
}

// ReceiptQueue accepts receipt jobs once a sale has committed.
type ReceiptQueue interface {
	EnqueueReceipt(ctx context.Context, saleID uint, email string) error
}

// InventoryCache drops cached stock aggregates after quantities change.
type InventoryCache interface {
	InvalidateInventoryValue(ctx context.Context) error
}

type saleService struct {
	sales    repository.SaleRepository
	ledger   *StockLedger
	tx       repository.Transactor
	receipts ReceiptQueue   // optional
	cache    InventoryCache // optional
	loc      *time.Location
	now      func() time.Time
}

func NewSaleService(
	sales repository.SaleRepository,
	ledger *StockLedger,
	tx repository.Transactor,
	receipts ReceiptQueue,
	cache InventoryCache,
	loc *time.Location,
) SaleService {
	if loc == nil {
		loc = time.UTC
	}
	return &saleService{
		sales:    sales,
		ledger:   ledger,
		tx:       tx,
		receipts: receipts,
		cache:    cache,
		loc:      loc,
		now:      time.Now,
	}
}

// pricedLine is one request line after its batch has been locked and priced.
type pricedLine struct {
	batch *model.StockBatch
	qty   int
	quote pricing.Quote
	gross decimal.Decimal
	net   decimal.Decimal
}

// ── CreateSale ───────────────────────────────────────────────────────────────
//   1. Validate items; replay a stored sale for a known idempotency key
//   2. BEGIN TX: lock every distinct batch in ascending id order, check stock
//   3. Price each line with the expiry markdown of today
//   4. Insert sale, then per line: decrement stock, insert item
//   5. COMMIT (any error rolls back all of it)
//   6. (async) receipt email, inventory value cache invalidation

// replay returns the sale stored under an idempotency key, provided req
// describes the same sale. A key reused for a different payload is a conflict.
func (s *saleService) replay(existing *model.Sale, req dto.CreateSaleRequest, msg string) (*dto.SaleResponse, error) {
	key := ""
	if existing.IdempotencyKey != nil {
		key = *existing.IdempotencyKey
	}
	if !sameSale(existing, req) {
		log.Warn().Uint("sale_id", existing.ID).Str("idempotency_key", key).Msg("idempotency key reused with a different payload")
		return nil, fmt.Errorf("%w: idempotency key %q was already used for a different sale", ErrConflict, key)
	}
	log.Info().Uint("sale_id", existing.ID).Str("idempotency_key", key).Msg(msg)
	return s.saleToResponse(existing), nil
}

// sameSale compares the customer and the per-batch quantities of req with a
// stored sale. Line order does not matter.
func sameSale(existing *model.Sale, req dto.CreateSaleRequest) bool {
	if existing.CustomerName != req.CustomerName ||
		!strings.EqualFold(existing.CustomerEmail, req.CustomerEmail) ||
		existing.CustomerPhone != req.CustomerPhone {
		return false
	}
	qty := make(map[uint]int, len(req.Items))
	for _, item := range req.Items {
		qty[item.StockBatchID] += item.Quantity
	}
	for _, item := range existing.Items {
		qty[item.StockBatchID] -= item.Quantity
	}
	for _, q := range qty {
		if q != 0 {
			return false
		}
	}
	return true
}

func (s *saleService) CreateSale(ctx context.Context, actorID *uint, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	if len(req.Items) == 0 {
		return nil, invalidf("a sale needs at least one item")
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, invalidf("item %d: quantity must be positive", i)
		}
	}

	var key *string
	if req.IdempotencyKey != nil && strings.TrimSpace(*req.IdempotencyKey) != "" {
		k := strings.TrimSpace(*req.IdempotencyKey)
		key = &k
		if existing, err := s.sales.FindByIdempotencyKey(ctx, k); err == nil {
			return s.replay(existing, req, "sale replayed")
		} else if !repository.IsNotFound(err) {
			return nil, err
		}
	}

	// Canonical lock order: two sales touching the same batches always lock
	// them in the same sequence, so they queue instead of deadlocking.
	requested := make(map[uint]int, len(req.Items))
	lockOrder := make([]uint, 0, len(req.Items))
	for _, item := range req.Items {
		if _, seen := requested[item.StockBatchID]; !seen {
			lockOrder = append(lockOrder, item.StockBatchID)
		}
		requested[item.StockBatchID] += item.Quantity
	}
	sort.Slice(lockOrder, func(i, j int) bool { return lockOrder[i] < lockOrder[j] })

	asOf := s.now().In(s.loc)
	var sale model.Sale

	txErr := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		locked := make(map[uint]*model.StockBatch, len(lockOrder))
		for _, id := range lockOrder {
			b, err := s.ledger.LockBatch(ctx, tx, id)
			if err != nil {
				return err
			}
			if b.Quantity < requested[id] {
				return insufficientStock(b.ID, b.ProductName(), requested[id], b.Quantity)
			}
			locked[id] = b
		}

		lines := make([]pricedLine, 0, len(req.Items))
		total, discount := decimal.Zero, decimal.Zero
		for _, item := range req.Items {
			b := locked[item.StockBatchID]
			quote := pricing.QuoteFor(b.SellingPrice, b.ExpirationDate, asOf)
			qty := decimal.NewFromInt(int64(item.Quantity))
			line := pricedLine{
				batch: b,
				qty:   item.Quantity,
				quote: quote,
				gross: b.SellingPrice.Mul(qty),
				net:   quote.UnitPrice.Mul(qty),
			}
			total = total.Add(line.gross)
			discount = discount.Add(line.gross.Sub(line.net))
			lines = append(lines, line)
		}

		sale = model.Sale{
			CustomerName:   req.CustomerName,
			CustomerEmail:  req.CustomerEmail,
			CustomerPhone:  req.CustomerPhone,
			TotalAmount:    total,
			DiscountAmount: discount,
			FinalAmount:    total.Sub(discount),
			CreatedByID:    actorID,
			IdempotencyKey: key,
		}
		if err := s.sales.CreateTx(ctx, tx, &sale); err != nil {
			return err
		}

		for _, line := range lines {
			if err := s.ledger.Decrement(ctx, tx, line.batch, line.qty, &sale.ID); err != nil {
				return err
			}
			item := model.SaleItem{
				SaleID:             sale.ID,
				StockBatchID:       line.batch.ID,
				Quantity:           line.qty,
				UnitPrice:          line.quote.UnitPrice,
				DiscountPercentage: decimal.NewFromInt(int64(line.quote.DiscountPercentage)),
				TotalPrice:         line.net,
			}
			if err := s.sales.CreateItemTx(ctx, tx, &item); err != nil {
				return err
			}
			item.StockBatch = line.batch
			sale.Items = append(sale.Items, item)
		}
		return nil
	})

	if txErr != nil {
		// A concurrent request with the same key committed first.
		if key != nil && repository.IsUniqueViolation(txErr) {
			if existing, err := s.sales.FindByIdempotencyKey(ctx, *key); err == nil {
				return s.replay(existing, req, "sale replayed after concurrent insert")
			}
		}
		err := classifyTxError(txErr)
		switch Kind(err) {
		case KindBatchNotFound, KindInsufficientStock, KindLockTimeout:
			log.Warn().Err(err).Str("kind", string(Kind(err))).Msg("sale rejected")
		default:
			log.Error().Err(err).Msg("sale transaction failed")
		}
		return nil, err
	}

	log.Info().
		Uint("sale_id", sale.ID).
		Int("items", len(sale.Items)).
		Str("final_amount", money(sale.FinalAmount)).
		Msg("sale created")

	s.afterCommit(ctx, &sale)
	return s.saleToResponse(&sale), nil
}

// afterCommit runs best-effort side effects; failures are logged, never returned.
func (s *saleService) afterCommit(ctx context.Context, sale *model.Sale) {
	if s.cache != nil {
		if err := s.cache.InvalidateInventoryValue(ctx); err != nil {
			log.Warn().Err(err).Msg("inventory value cache invalidation failed")
		}
	}
	if s.receipts != nil && sale.CustomerEmail != "" {
		if err := s.receipts.EnqueueReceipt(ctx, sale.ID, sale.CustomerEmail); err != nil {
			log.Warn().Err(err).Uint("sale_id", sale.ID).Msg("receipt job not enqueued")
		}
	}
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *saleService) GetSale(ctx context.Context, id uint) (*dto.SaleResponse, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFoundf("sale %d", id)
		}
		return nil, err
	}
	return s.saleToResponse(sale), nil
}

func (s *saleService) ListSales(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	if filter.Date != "" {
		day, err := parseDate(filter.Date, s.loc)
		if err != nil {
			return nil, err
		}
		from, until := dayRange(day, s.loc)
		filter.From, filter.Until = &from, &until
	}

	sales, total, err := s.sales.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := make([]dto.SaleResponse, 0, len(sales))
	for i := range sales {
		data = append(data, *s.saleToResponse(&sales[i]))
	}
	return &dto.SaleListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *saleService) saleToResponse(sale *model.Sale) *dto.SaleResponse {
	resp := &dto.SaleResponse{
		ID:             sale.ID,
		CustomerName:   sale.CustomerName,
		CustomerEmail:  sale.CustomerEmail,
		CustomerPhone:  sale.CustomerPhone,
		TotalAmount:    money(sale.TotalAmount),
		DiscountAmount: money(sale.DiscountAmount),
		FinalAmount:    money(sale.FinalAmount),
		CreatedBy:      sale.CreatedByID,
		IdempotencyKey: sale.IdempotencyKey,
		CreatedAt:      sale.CreatedAt.In(s.loc).Format(time.RFC3339),
		Items:          make([]dto.SaleItemResponse, 0, len(sale.Items)),
	}
	if sale.CreatedBy != nil {
		resp.CreatedByName = sale.CreatedBy.FullName
	}
	for _, item := range sale.Items {
		ir := dto.SaleItemResponse{
			ID:                 item.ID,
			StockBatchID:       item.StockBatchID,
			Quantity:           item.Quantity,
			UnitPrice:          money(item.UnitPrice),
			DiscountPercentage: money(item.DiscountPercentage),
			TotalPrice:         money(item.TotalPrice),
		}
		if item.StockBatch != nil {
			ir.BatchNumber = item.StockBatch.BatchNumber
			ir.ProductName = item.StockBatch.ProductName()
		}
		resp.Items = append(resp.Items, ir)
	}
	return resp
}
