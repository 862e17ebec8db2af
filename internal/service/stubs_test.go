package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pharmapos/internal/dto"
	"pharmapos/internal/model"
	"pharmapos/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory store ─────────────────────────────────────────────────────────
// memStore backs every stub repository below. memTransactor serializes
// transactions and restores a snapshot when fn fails, which gives the stubs
// the all-or-nothing behaviour of a real database transaction.

type memStore struct {
	mu sync.Mutex

	products  map[uint]*model.Product
	batches   map[uint]*model.StockBatch
	sales     map[uint]*model.Sale
	items     []model.SaleItem
	movements []model.StockMovement

	nextBatch, nextSale, nextItem, nextMove uint

	// Test hooks.
	lockLog        []uint           // ids passed to FindForUpdateTx, in call order
	lockErr        map[uint]error   // FindForUpdateTx fails for these ids
	failItemInsert int              // CreateItemTx fails on this call number (1-based)
	itemInserts    int              // CreateItemTx call counter
	hideKeyLookups int              // FindByIdempotencyKey misses this many times
	onLock         func(id uint)    // called after each successful lock
	createdAt      func() time.Time // clock for inserted sales
}

type memSnapshot struct {
	batches   map[uint]model.StockBatch
	sales     map[uint]model.Sale
	items     []model.SaleItem
	movements []model.StockMovement
	counters  [4]uint
}

func newMemStore() *memStore {
	return &memStore{
		products:  map[uint]*model.Product{},
		batches:   map[uint]*model.StockBatch{},
		sales:     map[uint]*model.Sale{},
		lockErr:   map[uint]error{},
		createdAt: time.Now,
	}
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		batches:   make(map[uint]model.StockBatch, len(m.batches)),
		sales:     make(map[uint]model.Sale, len(m.sales)),
		items:     append([]model.SaleItem(nil), m.items...),
		movements: append([]model.StockMovement(nil), m.movements...),
		counters:  [4]uint{m.nextBatch, m.nextSale, m.nextItem, m.nextMove},
	}
	for id, b := range m.batches {
		s.batches[id] = *b
	}
	for id, sale := range m.sales {
		s.sales[id] = *sale
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = make(map[uint]*model.StockBatch, len(s.batches))
	for id, b := range s.batches {
		b := b
		m.batches[id] = &b
	}
	m.sales = make(map[uint]*model.Sale, len(s.sales))
	for id, sale := range s.sales {
		sale := sale
		m.sales[id] = &sale
	}
	m.items = s.items
	m.movements = s.movements
	m.nextBatch, m.nextSale, m.nextItem, m.nextMove = s.counters[0], s.counters[1], s.counters[2], s.counters[3]
}

// addProduct and addBatch seed fixtures outside any transaction.
func (m *memStore) addProduct(name string) *model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &model.Product{ID: uint(len(m.products) + 1), Name: name, SKU: strings.ToUpper(name)}
	m.products[p.ID] = p
	return p
}

func (m *memStore) addBatch(productID uint, qty int, selling string, expiration time.Time) *model.StockBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBatch++
	b := &model.StockBatch{
		ID:             m.nextBatch,
		ProductID:      productID,
		BatchNumber:    "B" + decimal.NewFromInt(int64(m.nextBatch)).String(),
		Quantity:       qty,
		CostPrice:      decimal.RequireFromString(selling).Div(decimal.NewFromInt(2)).Round(2),
		SellingPrice:   decimal.RequireFromString(selling),
		ExpirationDate: expiration,
	}
	m.batches[b.ID] = b
	return b
}

func (m *memStore) quantity(id uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[id].Quantity
}

func (m *memStore) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

func (m *memStore) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memStore) withProduct(b model.StockBatch) *model.StockBatch {
	if p, ok := m.products[b.ProductID]; ok {
		cp := *p
		b.Product = &cp
	}
	return &b
}

type memTransactor struct {
	store *memStore
	mu    sync.Mutex
}

func (t *memTransactor) WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.store.snapshot()
	defer func() {
		if r := recover(); r != nil {
			t.store.restore(snap)
			panic(r)
		}
	}()
	if err = fn(nil); err != nil {
		t.store.restore(snap)
	}
	return err
}

// ── StockBatchRepository ────────────────────────────────────────────────────

type memBatchRepo struct{ s *memStore }

func (r *memBatchRepo) CreateTx(_ context.Context, _ *gorm.DB, b *model.StockBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextBatch++
	b.ID = r.s.nextBatch
	b.CreatedAt, b.UpdatedAt = time.Now(), time.Now()
	cp := *b
	cp.Product = nil
	r.s.batches[b.ID] = &cp
	return nil
}

func (r *memBatchRepo) FindByID(_ context.Context, id uint) (*model.StockBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.s.withProduct(*b), nil
}

func (r *memBatchRepo) sorted(keep func(*model.StockBatch) bool) []model.StockBatch {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.StockBatch
	for _, b := range r.s.batches {
		if keep(b) {
			out = append(out, *r.s.withProduct(*b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memBatchRepo) List(_ context.Context, filter dto.StockBatchFilter) ([]model.StockBatch, int64, error) {
	out := r.sorted(func(b *model.StockBatch) bool {
		return filter.ProductID == 0 || b.ProductID == filter.ProductID
	})
	return out, int64(len(out)), nil
}

func (r *memBatchRepo) Update(_ context.Context, b *model.StockBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.batches[b.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.BatchNumber, cur.CostPrice, cur.SellingPrice, cur.ExpirationDate = b.BatchNumber, b.CostPrice, b.SellingPrice, b.ExpirationDate
	return nil
}

func (r *memBatchRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.batches[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	if r.s.batchSold(id) {
		return errReferenced
	}
	delete(r.s.batches, id)
	return nil
}

// errReferenced mirrors the RESTRICT foreign key from sale_items to stock_batches.
var errReferenced = &pgconn.PgError{Code: "23503", Message: "update or delete violates foreign key constraint"}

// batchSold reports whether any sale line references the batch. Callers hold mu.
func (m *memStore) batchSold(id uint) bool {
	for _, it := range m.items {
		if it.StockBatchID == id {
			return true
		}
	}
	return false
}

func inDateRange(d, from, until time.Time) bool {
	day := d.Format(dateLayout)
	return day >= from.Format(dateLayout) && day <= until.Format(dateLayout)
}

func (r *memBatchRepo) ListExpiring(_ context.Context, from, until time.Time) ([]model.StockBatch, error) {
	return r.sorted(func(b *model.StockBatch) bool { return inDateRange(b.ExpirationDate, from, until) }), nil
}

func (r *memBatchRepo) ListLowStock(_ context.Context, threshold int) ([]model.StockBatch, error) {
	return r.sorted(func(b *model.StockBatch) bool { return b.Quantity <= threshold }), nil
}

func (r *memBatchRepo) CountExpiring(ctx context.Context, from, until time.Time) (int64, error) {
	out, _ := r.ListExpiring(ctx, from, until)
	return int64(len(out)), nil
}

func (r *memBatchRepo) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	out, _ := r.ListLowStock(ctx, threshold)
	return int64(len(out)), nil
}

func (r *memBatchRepo) Totals(_ context.Context) (repository.InventoryTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := repository.InventoryTotals{CostValue: decimal.Zero, SellingValue: decimal.Zero}
	for _, b := range r.s.batches {
		q := decimal.NewFromInt(int64(b.Quantity))
		t.Batches++
		t.Quantity += int64(b.Quantity)
		t.CostValue = t.CostValue.Add(b.CostPrice.Mul(q))
		t.SellingValue = t.SellingValue.Add(b.SellingPrice.Mul(q))
	}
	return t, nil
}

func (r *memBatchRepo) FindForUpdateTx(_ context.Context, _ *gorm.DB, id uint) (*model.StockBatch, error) {
	r.s.mu.Lock()
	r.s.lockLog = append(r.s.lockLog, id)
	if err := r.s.lockErr[id]; err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	b, ok := r.s.batches[id]
	if !ok {
		r.s.mu.Unlock()
		return nil, gorm.ErrRecordNotFound
	}
	out := r.s.withProduct(*b)
	hook := r.s.onLock
	r.s.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return out, nil
}

func (r *memBatchRepo) AddQuantityTx(_ context.Context, _ *gorm.DB, id uint, delta int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[id]
	if !ok || b.Quantity+delta < 0 {
		return false, nil
	}
	b.Quantity += delta
	return true, nil
}

// ── StockMovementRepository ─────────────────────────────────────────────────

type memMovementRepo struct{ s *memStore }

func (r *memMovementRepo) CreateTx(_ context.Context, _ *gorm.DB, m *model.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextMove++
	m.ID = r.s.nextMove
	m.CreatedAt = time.Now()
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r *memMovementRepo) List(_ context.Context, filter dto.StockMovementFilter) ([]model.StockMovement, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.s.movements {
		if filter.StockBatchID != 0 && m.StockBatchID != filter.StockBatchID {
			continue
		}
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

// ── SaleRepository ──────────────────────────────────────────────────────────

type memSaleRepo struct{ s *memStore }

func (r *memSaleRepo) CreateTx(_ context.Context, _ *gorm.DB, sale *model.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sale.IdempotencyKey != nil {
		for _, existing := range r.s.sales {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *sale.IdempotencyKey {
				return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
			}
		}
	}
	r.s.nextSale++
	sale.ID = r.s.nextSale
	sale.CreatedAt = r.s.createdAt()
	sale.UpdatedAt = sale.CreatedAt
	cp := *sale
	cp.Items = nil
	r.s.sales[sale.ID] = &cp
	return nil
}

func (r *memSaleRepo) CreateItemTx(_ context.Context, _ *gorm.DB, item *model.SaleItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.itemInserts++
	if r.s.failItemInsert > 0 && r.s.itemInserts == r.s.failItemInsert {
		return &pgconn.PgError{Code: "XX000", Message: "injected failure"}
	}
	r.s.nextItem++
	item.ID = r.s.nextItem
	cp := *item
	cp.StockBatch = nil
	r.s.items = append(r.s.items, cp)
	return nil
}

// load assembles a sale with its items, the way the gorm preloads would.
func (r *memSaleRepo) load(sale *model.Sale) *model.Sale {
	out := *sale
	out.Items = nil
	for _, item := range r.s.items {
		if item.SaleID == sale.ID {
			if b, ok := r.s.batches[item.StockBatchID]; ok {
				item.StockBatch = r.s.withProduct(*b)
			}
			out.Items = append(out.Items, item)
		}
	}
	return &out
}

func (r *memSaleRepo) FindByID(_ context.Context, id uint) (*model.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.load(sale), nil
}

func (r *memSaleRepo) FindByIdempotencyKey(_ context.Context, key string) (*model.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.hideKeyLookups > 0 {
		r.s.hideKeyLookups--
		return nil, gorm.ErrRecordNotFound
	}
	for _, sale := range r.s.sales {
		if sale.IdempotencyKey != nil && *sale.IdempotencyKey == key {
			return r.load(sale), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memSaleRepo) inRange(t time.Time, from, until *time.Time) bool {
	return (from == nil || !t.Before(*from)) && (until == nil || t.Before(*until))
}

func (r *memSaleRepo) List(_ context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Sale
	for _, sale := range r.s.sales {
		if !r.inRange(sale.CreatedAt, filter.From, filter.Until) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(sale.CustomerName), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *r.load(sale))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memSaleRepo) Aggregate(_ context.Context, from, until *time.Time) (repository.SalesAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	agg := repository.SalesAggregate{Revenue: decimal.Zero}
	for _, sale := range r.s.sales {
		if r.inRange(sale.CreatedAt, from, until) {
			agg.Count++
			agg.Revenue = agg.Revenue.Add(sale.FinalAmount)
		}
	}
	return agg, nil
}

func (r *memSaleRepo) CountCustomers(_ context.Context, from, until *time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	for _, sale := range r.s.sales {
		if sale.CustomerEmail != "" && r.inRange(sale.CreatedAt, from, until) {
			seen[strings.ToLower(sale.CustomerEmail)] = true
		}
	}
	return int64(len(seen)), nil
}

func (r *memSaleRepo) MonthlyRevenue(_ context.Context, from time.Time, loc *time.Location) ([]repository.MonthlyRevenue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byMonth := map[string]decimal.Decimal{}
	for _, sale := range r.s.sales {
		if sale.CreatedAt.Before(from) {
			continue
		}
		month := sale.CreatedAt.In(loc).Format("2006-01")
		byMonth[month] = byMonth[month].Add(sale.FinalAmount)
	}
	out := make([]repository.MonthlyRevenue, 0, len(byMonth))
	for month, rev := range byMonth {
		out = append(out, repository.MonthlyRevenue{Month: month, Revenue: rev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// productTotals groups items of sales created since from by product name.
func (r *memSaleRepo) productTotals(from time.Time) []repository.ProductSales {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byName := map[string]*repository.ProductSales{}
	for _, item := range r.s.items {
		sale := r.s.sales[item.SaleID]
		if sale == nil || sale.CreatedAt.Before(from) {
			continue
		}
		b := r.s.batches[item.StockBatchID]
		name := r.s.products[b.ProductID].Name
		row, ok := byName[name]
		if !ok {
			row = &repository.ProductSales{Name: name, Revenue: decimal.Zero}
			byName[name] = row
		}
		row.Revenue = row.Revenue.Add(item.TotalPrice)
		row.Quantity += int64(item.Quantity)
	}
	out := make([]repository.ProductSales, 0, len(byName))
	for _, row := range byName {
		out = append(out, *row)
	}
	return out
}

func (r *memSaleRepo) ItemRevenue(_ context.Context, from time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, row := range r.productTotals(from) {
		total = total.Add(row.Revenue)
	}
	return total, nil
}

func top(rows []repository.ProductSales, less func(a, b repository.ProductSales) bool, limit int) []repository.ProductSales {
	sort.Slice(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func (r *memSaleRepo) TopProductsByRevenue(_ context.Context, from time.Time, limit int) ([]repository.ProductSales, error) {
	return top(r.productTotals(from), func(a, b repository.ProductSales) bool {
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Name < b.Name
	}, limit), nil
}

func (r *memSaleRepo) TopProductsByQuantity(_ context.Context, from time.Time, limit int) ([]repository.ProductSales, error) {
	return top(r.productTotals(from), func(a, b repository.ProductSales) bool {
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Name < b.Name
	}, limit), nil
}

// ── Collaborator fakes ──────────────────────────────────────────────────────

type fakeReceipts struct {
	mu   sync.Mutex
	jobs []uint
	err  error
}

func (f *fakeReceipts) EnqueueReceipt(_ context.Context, saleID uint, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, saleID)
	return f.err
}

type fakeCache struct {
	mu            sync.Mutex
	invalidations int
}

func (f *fakeCache) InvalidateInventoryValue(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidations++
	return nil
}

// ── Fixture ─────────────────────────────────────────────────────────────────

// fixedNow is the reference "today" of every service test.
var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func daysFromNow(days int) time.Time {
	y, m, d := fixedNow.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store    *memStore
	tx       *memTransactor
	batches  *memBatchRepo
	moves    *memMovementRepo
	sales    *memSaleRepo
	ledger   *StockLedger
	receipts *fakeReceipts
	cache    *fakeCache
	svc      *saleService
}

func newFixture() *fixture {
	store := newMemStore()
	store.createdAt = func() time.Time { return fixedNow }
	f := &fixture{
		store:    store,
		tx:       &memTransactor{store: store},
		batches:  &memBatchRepo{s: store},
		moves:    &memMovementRepo{s: store},
		sales:    &memSaleRepo{s: store},
		receipts: &fakeReceipts{},
		cache:    &fakeCache{},
	}
	f.ledger = NewStockLedger(f.batches, f.moves, f.tx)
	f.svc = NewSaleService(f.sales, f.ledger, f.tx, f.receipts, f.cache, time.UTC).(*saleService)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}
