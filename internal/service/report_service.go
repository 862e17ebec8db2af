package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pharmapos/internal/dto"
	"pharmapos/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// The cached value lives under a key suffixed by a generation number.
	// Invalidation bumps the generation, so a computation that started
	// before it can only write a key nobody reads any more.
	inventoryValueGenKey = "reports:inventory_value:gen"
	inventoryValueKeyFmt = "reports:inventory_value:%d"
	topProductsLimit     = 5
	othersLabel          = "Others"
)

// ReportService computes read-only aggregates. Nothing here takes row locks.
type ReportService interface {
	// SalesReport aggregates sales whose creation date (in the configured
	// time zone) lies in [start, end]. Only the calendar date of each bound is
	// used; either may be nil.
	SalesReport(ctx context.Context, start, end *time.Time) (*dto.SalesReportResponse, error)
	SalesSummary(ctx context.Context, days int) (*dto.SalesReportResponse, error)
	InventorySummary(ctx context.Context) (*dto.InventorySummaryResponse, error)
	InventoryValue(ctx context.Context) (*dto.InventoryValueResponse, error)
	InvalidateInventoryValue(ctx context.Context) error
	Dashboard(ctx context.Context) (*dto.DashboardResponse, error)
	ExpiringBatches(ctx context.Context, days int) ([]dto.StockBatchResponse, error)
	LowStockBatches(ctx context.Context, threshold int) ([]dto.StockBatchResponse, error)
}

// ReportOptions carries the tunables of the reporting service.
type ReportOptions struct {
	Location          *time.Location
	LowStockThreshold int
	ExpiringDays      int
	InventoryValueTTL time.Duration
}

type reportService struct {
	sales   repository.SaleRepository
	batches repository.StockBatchRepository
	rdb     *redis.Client // nil disables caching
	opts    ReportOptions
	now     func() time.Time
}

func NewReportService(
	sales repository.SaleRepository,
	batches repository.StockBatchRepository,
	rdb *redis.Client,
	opts ReportOptions,
) ReportService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.InventoryValueTTL <= 0 {
		opts.InventoryValueTTL = time.Hour
	}
	return &reportService{sales: sales, batches: batches, rdb: rdb, opts: opts, now: time.Now}
}

func (s *reportService) today() time.Time {
	return startOfDay(s.now(), s.opts.Location)
}

// ── Sales ────────────────────────────────────────────────────────────────────

func (s *reportService) SalesReport(ctx context.Context, start, end *time.Time) (*dto.SalesReportResponse, error) {
	loc := s.opts.Location
	resp := &dto.SalesReportResponse{}

	var from, until *time.Time
	if start != nil {
		f := calendarDay(*start, loc)
		from = &f
		label := f.Format(dateLayout)
		resp.PeriodStart = &label
	}
	if end != nil {
		e := calendarDay(*end, loc)
		u := e.AddDate(0, 0, 1)
		until = &u
		label := e.Format(dateLayout)
		resp.PeriodEnd = &label
	}

	agg, err := s.sales.Aggregate(ctx, from, until)
	if err != nil {
		return nil, err
	}

	resp.TotalSales = agg.Count
	resp.TotalRevenue = money(agg.Revenue)
	avg := decimal.Zero
	if agg.Count > 0 {
		avg = agg.Revenue.DivRound(decimal.NewFromInt(agg.Count), 2)
	}
	resp.AverageSaleValue = money(avg)
	return resp, nil
}

func (s *reportService) SalesSummary(ctx context.Context, days int) (*dto.SalesReportResponse, error) {
	if days < 0 {
		return nil, invalidf("days must not be negative")
	}
	start := s.today().AddDate(0, 0, -days)
	return s.SalesReport(ctx, &start, nil)
}

// ── Inventory ────────────────────────────────────────────────────────────────

func (s *reportService) InventorySummary(ctx context.Context) (*dto.InventorySummaryResponse, error) {
	totals, err := s.batches.Totals(ctx)
	if err != nil {
		return nil, err
	}
	low, err := s.batches.CountLowStock(ctx, s.opts.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	today := s.today()
	expiring, err := s.batches.CountExpiring(ctx, today, today.AddDate(0, 0, s.opts.ExpiringDays))
	if err != nil {
		return nil, err
	}
	return &dto.InventorySummaryResponse{
		TotalBatches:       totals.Batches,
		TotalQuantity:      totals.Quantity,
		LowStockBatches:    low,
		ExpiringBatches:    expiring,
		LowStockThreshold:  s.opts.LowStockThreshold,
		ExpiringWithinDays: s.opts.ExpiringDays,
	}, nil
}

// InventoryValue is served from Redis when possible. A cache failure degrades
// to a direct computation.
func (s *reportService) InventoryValue(ctx context.Context) (*dto.InventoryValueResponse, error) {
	var key string
	if s.rdb != nil {
		var err error
		if key, err = s.inventoryValueKey(ctx); err != nil {
			log.Warn().Err(err).Msg("inventory value cache generation read failed")
		}
	}
	if key != "" {
		cached, err := s.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var resp dto.InventoryValueResponse
			if jsonErr := json.Unmarshal(cached, &resp); jsonErr == nil {
				return &resp, nil
			}
		case !errors.Is(err, redis.Nil):
			log.Warn().Err(err).Msg("inventory value cache read failed")
		}
	}

	totals, err := s.batches.Totals(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.InventoryValueResponse{
		TotalCostValue:    money(totals.CostValue),
		TotalSellingValue: money(totals.SellingValue),
		PotentialProfit:   money(totals.SellingValue.Sub(totals.CostValue)),
	}

	if key != "" {
		if b, jsonErr := json.Marshal(resp); jsonErr == nil {
			if err := s.rdb.Set(ctx, key, b, s.opts.InventoryValueTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("inventory value cache write failed")
			}
		}
	}
	return resp, nil
}

// inventoryValueKey returns the cache key of the current generation.
func (s *reportService) inventoryValueKey(ctx context.Context) (string, error) {
	gen, err := s.rdb.Get(ctx, inventoryValueGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf(inventoryValueKeyFmt, gen), nil
}

// InvalidateInventoryValue starts a new cache generation. Entries of older
// generations are never read again and age out with their TTL.
func (s *reportService) InvalidateInventoryValue(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Incr(ctx, inventoryValueGenKey).Err()
}

func (s *reportService) ExpiringBatches(ctx context.Context, days int) ([]dto.StockBatchResponse, error) {
	if days < 0 {
		return nil, invalidf("days must not be negative")
	}
	today := s.today()
	batches, err := s.batches.ListExpiring(ctx, today, today.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}
	return batchesToResponse(batches, s.now().In(s.opts.Location), s.opts.LowStockThreshold), nil
}

func (s *reportService) LowStockBatches(ctx context.Context, threshold int) ([]dto.StockBatchResponse, error) {
	if threshold < 0 {
		return nil, invalidf("threshold must not be negative")
	}
	batches, err := s.batches.ListLowStock(ctx, threshold)
	if err != nil {
		return nil, err
	}
	return batchesToResponse(batches, s.now().In(s.opts.Location), threshold), nil
}

// ── Dashboard ────────────────────────────────────────────────────────────────

func (s *reportService) Dashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	loc := s.opts.Location
	todayStart, tomorrow := dayRange(s.now(), loc)
	monthStart := time.Date(todayStart.Year(), todayStart.Month(), 1, 0, 0, 0, 0, loc)
	sixMonthsAgo := monthStart.AddDate(0, -5, 0)
	thirtyDaysAgo := todayStart.AddDate(0, 0, -30)

	// The queries are independent; run them concurrently on the pool.
	var (
		today, month          repository.SalesAggregate
		customers             int64
		monthly               []repository.MonthlyRevenue
		itemRevenue           decimal.Decimal
		byRevenue, byQuantity []repository.ProductSales
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		today, err = s.sales.Aggregate(gctx, &todayStart, &tomorrow)
		return err
	})
	g.Go(func() (err error) {
		month, err = s.sales.Aggregate(gctx, &monthStart, nil)
		return err
	})
	g.Go(func() (err error) {
		customers, err = s.sales.CountCustomers(gctx, &monthStart, nil)
		return err
	})
	g.Go(func() (err error) {
		monthly, err = s.sales.MonthlyRevenue(gctx, sixMonthsAgo, loc)
		return err
	})
	g.Go(func() (err error) {
		itemRevenue, err = s.sales.ItemRevenue(gctx, thirtyDaysAgo)
		return err
	})
	g.Go(func() (err error) {
		byRevenue, err = s.sales.TopProductsByRevenue(gctx, thirtyDaysAgo, topProductsLimit)
		return err
	})
	g.Go(func() (err error) {
		byQuantity, err = s.sales.TopProductsByQuantity(gctx, thirtyDaysAgo, topProductsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &dto.DashboardResponse{
		RevenueToday:          money(today.Revenue),
		RevenueMonth:          money(month.Revenue),
		SalesToday:            today.Count,
		CustomersMonth:        customers,
		MonthlySales:          make([]dto.MonthRevenue, 0, len(monthly)),
		TopProductsByRevenue:  make([]dto.ProductRevenue, 0, len(byRevenue)+1),
		RevenueLast30Days:     money(itemRevenue),
		TopProductsByQuantity: make([]dto.ProductQuantity, 0, len(byQuantity)),
	}
	for _, m := range monthly {
		resp.MonthlySales = append(resp.MonthlySales, dto.MonthRevenue{Month: m.Month, Revenue: money(m.Revenue)})
	}

	topSum := decimal.Zero
	for _, p := range byRevenue {
		topSum = topSum.Add(p.Revenue)
		resp.TopProductsByRevenue = append(resp.TopProductsByRevenue, dto.ProductRevenue{Name: p.Name, Revenue: money(p.Revenue)})
	}
	if others := itemRevenue.Sub(topSum); others.IsPositive() {
		resp.TopProductsByRevenue = append(resp.TopProductsByRevenue, dto.ProductRevenue{Name: othersLabel, Revenue: money(others)})
	}

	for _, p := range byQuantity {
		resp.TopProductsByQuantity = append(resp.TopProductsByQuantity, dto.ProductQuantity{Name: p.Name, Quantity: p.Quantity})
	}
	return resp, nil
}
