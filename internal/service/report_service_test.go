package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pharmapos/internal/dto"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReportFixture(t *testing.T) (*fixture, *reportService, *miniredis.Miniredis) {
	t.Helper()
	f := newFixture()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewReportService(f.sales, f.batches, rdb, ReportOptions{
		Location:          time.UTC,
		LowStockThreshold: 10,
		ExpiringDays:      30,
		InventoryValueTTL: time.Hour,
	}).(*reportService)
	svc.now = func() time.Time { return fixedNow }
	return f, svc, mr
}

// sellAt records a sale at the given instant through the real orchestrator.
func sellAt(t *testing.T, f *fixture, at time.Time, email string, items ...dto.SaleItemRequest) *dto.SaleResponse {
	t.Helper()
	f.store.createdAt = func() time.Time { return at }
	req := saleRequest(items...)
	req.CustomerEmail = email
	resp, err := f.svc.CreateSale(context.Background(), nil, req)
	require.NoError(t, err)
	return resp
}

func ptr(t time.Time) *time.Time { return &t }

// cachedInventoryValue reports whether the current cache generation holds a value.
func cachedInventoryValue(t *testing.T, svc *reportService, mr *miniredis.Miniredis) bool {
	t.Helper()
	key, err := svc.inventoryValueKey(context.Background())
	require.NoError(t, err)
	return mr.Exists(key)
}

func TestSalesReport_TwoSales(t *testing.T) {
	f, svc, _ := newReportFixture(t)
	p := f.store.addProduct("Paracetamol")
	b := f.store.addBatch(p.ID, 100, "19.50", daysFromNow(365))
	sellAt(t, f, fixedNow, "", line(b.ID, 1))
	sellAt(t, f, fixedNow, "", line(b.ID, 1))

	report, err := svc.SalesReport(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.TotalSales)
	assert.Equal(t, "39.00", report.TotalRevenue)
	assert.Equal(t, "19.50", report.AverageSaleValue)
	assert.Nil(t, report.PeriodStart)
	assert.Nil(t, report.PeriodEnd)
}

func TestSalesReport_EmptyAverageIsZero(t *testing.T) {
	_, svc, _ := newReportFixture(t)

	report, err := svc.SalesReport(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.TotalSales)
	assert.Equal(t, "0.00", report.TotalRevenue)
	assert.Equal(t, "0.00", report.AverageSaleValue)
}

func TestSalesReport_InclusiveDateBounds(t *testing.T) {
	f, svc, _ := newReportFixture(t)
	p := f.store.addProduct("Ibuprofen")
	b := f.store.addBatch(p.ID, 100, "10.00", daysFromNow(365))

	sellAt(t, f, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "", line(b.ID, 1))     // first instant of start day
	sellAt(t, f, time.Date(2026, 3, 5, 23, 59, 59, 0, time.UTC), "", line(b.ID, 2))  // last second of end day
	sellAt(t, f, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), "", line(b.ID, 4))     // outside
	sellAt(t, f, time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC), "", line(b.ID, 8)) // outside

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	report, err := svc.SalesReport(context.Background(), &start, &end)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.TotalSales)
	assert.Equal(t, "30.00", report.TotalRevenue)
	assert.Equal(t, "15.00", report.AverageSaleValue)
	require.NotNil(t, report.PeriodStart)
	assert.Equal(t, "2026-03-01", *report.PeriodStart)
	assert.Equal(t, "2026-03-05", *report.PeriodEnd)
}

func TestSalesReport_AverageRounding(t *testing.T) {
	f, svc, _ := newReportFixture(t)
	p := f.store.addProduct("Zinc")
	b := f.store.addBatch(p.ID, 100, "10.00", daysFromNow(365))
	c := f.store.addBatch(p.ID, 100, "0.01", daysFromNow(365))
	sellAt(t, f, fixedNow, "", line(b.ID, 1))
	sellAt(t, f, fixedNow, "", line(b.ID, 1))
	sellAt(t, f, fixedNow, "", line(c.ID, 1))

	report, err := svc.SalesReport(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "20.01", report.TotalRevenue)
	assert.Equal(t, "6.67", report.AverageSaleValue)
}

func TestSalesSummary(t *testing.T) {
	f, svc, _ := newReportFixture(t)
	p := f.store.addProduct("Cetirizine")
	b := f.store.addBatch(p.ID, 100, "5.00", daysFromNow(365))
	sellAt(t, f, fixedNow.AddDate(0, 0, -10), "", line(b.ID, 1))
	sellAt(t, f, fixedNow.AddDate(0, 0, -40), "", line(b.ID, 1))

	report, err := svc.SalesSummary(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.TotalSales)
	assert.Equal(t, "2026-02-08", *report.PeriodStart)

	_, err = svc.SalesSummary(context.Background(), -1)
	assert.Equal(t, KindValidation, Kind(err))
}

func TestInventorySummary(t *testing.T) {
	f, svc, _ := newReportFixture(t)
	p := f.store.addProduct("Aspirin")
	f.store.addBatch(p.ID, 5, "1.00", daysFromNow(10))  // low + expiring
	f.store.addBatch(p.ID, 50, "1.00", daysFromNow(30)) // expiring (inclusive)
	f.store.addBatch(p.ID, 50, "1.00", daysFromNow(31)) // neither
	f.store.addBatch(p.ID, 10, "1.00", daysFromNow(-1)) // low, already expired

	summary, err := svc.InventorySummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.TotalBatches)
	assert.Equal(t, int64(115), summary.TotalQuantity)
	assert.Equal(t, int64(2), summary.LowStockBatches)
	assert.Equal(t, int64(2), summary.ExpiringBatches)
}

func TestInventoryValue_CachedAndInvalidated(t *testing.T) {
	f, svc, mr := newReportFixture(t)
	p := f.store.addProduct("Omeprazole")
	b := f.store.addBatch(p.ID, 10, "20.00", daysFromNow(365)) // cost 10.00

	v, err := svc.InventoryValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100.00", v.TotalCostValue)
	assert.Equal(t, "200.00", v.TotalSellingValue)
	assert.Equal(t, "100.00", v.PotentialProfit)
	assert.True(t, cachedInventoryValue(t, svc, mr))
	assert.Equal(t, time.Hour, mr.TTL("reports:inventory_value:0"))

	// Stock changes behind the cache's back are not visible until invalidation.
	_, err = f.batches.AddQuantityTx(context.Background(), nil, b.ID, -5)
	require.NoError(t, err)
	v, err = svc.InventoryValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "200.00", v.TotalSellingValue)

	require.NoError(t, svc.InvalidateInventoryValue(context.Background()))
	assert.False(t, cachedInventoryValue(t, svc, mr))
	v, err = svc.InventoryValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100.00", v.TotalSellingValue)
}

func TestInventoryValue_RedisDownFallsBackToDatabase(t *testing.T) {
	f, svc, mr := newReportFixture(t)
	p := f.store.addProduct("Metformin")
	f.store.addBatch(p.ID, 4, "2.50", daysFromNow(365))
	mr.Close()

	v, err := svc.InventoryValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.00", v.TotalSellingValue)
}

func TestInventoryValue_SaleInvalidatesCache(t *testing.T) {
	f, svc, mr := newReportFixture(t)
	f.svc.cache = svc
	p := f.store.addProduct("Losartan")
	b := f.store.addBatch(p.ID, 10, "3.00", daysFromNow(365))

	_, err := svc.InventoryValue(context.Background())
	require.NoError(t, err)
	require.True(t, cachedInventoryValue(t, svc, mr))

	sellAt(t, f, fixedNow, "", line(b.ID, 1))
	assert.False(t, cachedInventoryValue(t, svc, mr))
}

func TestInventoryValue_LateWriteAfterInvalidationIsIgnored(t *testing.T) {
	f, svc, mr := newReportFixture(t)
	p := f.store.addProduct("Atorvastatin")
	b := f.store.addBatch(p.ID, 10, "20.00", daysFromNow(365))
	ctx := context.Background()

	// A reader computes the value and resolves its key...
	stale, err := svc.InventoryValue(ctx)
	require.NoError(t, err)
	staleKey, err := svc.inventoryValueKey(ctx)
	require.NoError(t, err)

	// ...a sale commits and invalidates...
	_, err = f.batches.AddQuantityTx(ctx, nil, b.ID, -5)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateInventoryValue(ctx))

	// ...and the reader's SET lands afterwards.
	payload, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, mr.Set(staleKey, string(payload)))
	mr.SetTTL(staleKey, time.Hour)

	v, err := svc.InventoryValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100.00", v.TotalSellingValue)
	assert.Equal(t, "200.00", stale.TotalSellingValue)
}

func TestDashboard(t *testing.T) {
	f, svc, _ := newReportFixture(t)
	names := []string{"A", "B", "C", "D", "E", "F"}
	batches := make([]uint, len(names))
	for i, n := range names {
		p := f.store.addProduct(n)
		batches[i] = f.store.addBatch(p.ID, 1000, "10.00", daysFromNow(365)).ID
	}

	// Today: F sells most by quantity, A..E ranked by descending quantity.
	sellAt(t, f, fixedNow, "x@example.com", line(batches[0], 6), line(batches[1], 5))
	sellAt(t, f, fixedNow, "y@example.com", line(batches[2], 4), line(batches[3], 3))
	// Customers are counted by email regardless of case.
	sellAt(t, f, fixedNow.AddDate(0, 0, -2), "X@Example.com", line(batches[4], 2), line(batches[5], 1))
	// Last month, outside "this month" but inside the 30 day window.
	sellAt(t, f, time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC), "", line(batches[5], 7))
	// Too old for the product rankings.
	sellAt(t, f, time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC), "", line(batches[0], 100))

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "180.00", d.RevenueToday)
	assert.Equal(t, int64(2), d.SalesToday)
	assert.Equal(t, "210.00", d.RevenueMonth)
	assert.Equal(t, int64(2), d.CustomersMonth)
	assert.Equal(t, "280.00", d.RevenueLast30Days)

	require.Len(t, d.TopProductsByRevenue, 6)
	assert.Equal(t, dto.ProductRevenue{Name: "F", Revenue: "80.00"}, d.TopProductsByRevenue[0])
	assert.Equal(t, dto.ProductRevenue{Name: "A", Revenue: "60.00"}, d.TopProductsByRevenue[1])
	assert.Equal(t, dto.ProductRevenue{Name: othersLabel, Revenue: "20.00"}, d.TopProductsByRevenue[5])

	require.Len(t, d.TopProductsByQuantity, 5)
	assert.Equal(t, dto.ProductQuantity{Name: "F", Quantity: 8}, d.TopProductsByQuantity[0])

	require.Len(t, d.MonthlySales, 3)
	assert.Equal(t, "2025-12", d.MonthlySales[0].Month)
	assert.Equal(t, "2026-03", d.MonthlySales[2].Month)
	assert.Equal(t, "210.00", d.MonthlySales[2].Revenue)
}

func TestExpiringAndLowStockBatches(t *testing.T) {
	f, svc, _ := newReportFixture(t)
	p := f.store.addProduct("Insulin")
	soon := f.store.addBatch(p.ID, 50, "40.00", daysFromNow(5))
	f.store.addBatch(p.ID, 3, "40.00", daysFromNow(200))
	f.store.addBatch(p.ID, 50, "40.00", daysFromNow(-3))

	expiring, err := svc.ExpiringBatches(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, soon.ID, expiring[0].ID)
	assert.Equal(t, 5, expiring[0].DaysUntilExpiration)
	assert.Equal(t, 35, expiring[0].DiscountPercentage)
	assert.Equal(t, "26.00", expiring[0].DiscountedPrice)

	low, err := svc.LowStockBatches(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, 3, low[0].Quantity)
	assert.True(t, low[0].IsLowStock)

	_, err = svc.ExpiringBatches(context.Background(), -1)
	assert.Equal(t, KindValidation, Kind(err))
}
