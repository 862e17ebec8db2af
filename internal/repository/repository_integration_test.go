//go:build integration

// Run with: go test -tags integration ./internal/repository/... -v
package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pharmapos/internal/infra"
	"pharmapos/internal/model"
	"pharmapos/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("pharmapos_test"),
		tcPostgres.WithUsername("pharmapos"),
		tcPostgres.WithPassword("pharmapos"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	// Patches must be idempotent across restarts.
	require.NoError(t, infra.RunMigrations(db))
	return db
}

func seedBatch(t *testing.T, db *gorm.DB, qty int) *model.StockBatch {
	t.Helper()
	ctx := context.Background()
	catalog := repository.NewCatalogRepository(db)

	suffix := fmt.Sprint(time.Now().UnixNano())
	brand := &model.Brand{Name: "Brand " + suffix}
	require.NoError(t, catalog.CreateBrand(ctx, brand))
	cat := &model.Category{Name: "Category " + suffix}
	require.NoError(t, catalog.CreateCategory(ctx, cat))
	prod := &model.Product{Name: "Ibuprofen 400mg", BrandID: brand.ID, CategoryID: cat.ID, SKU: "SKU-" + suffix}
	require.NoError(t, catalog.CreateProduct(ctx, prod))

	b := &model.StockBatch{
		ProductID:      prod.ID,
		BatchNumber:    "B-" + suffix,
		Quantity:       qty,
		CostPrice:      decimal.RequireFromString("5.00"),
		SellingPrice:   decimal.RequireFromString("10.00"),
		ExpirationDate: time.Now().AddDate(1, 0, 0),
	}
	require.NoError(t, repository.NewStockBatchRepository(db).CreateTx(ctx, db, b))
	return b
}

func TestIntegration_RowLockContention(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	batch := seedBatch(t, db, 5)
	batches := repository.NewStockBatchRepository(db)

	holder := repository.NewTransactor(db, 0)
	waiter := repository.NewTransactor(db, 200*time.Millisecond)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- holder.WithinTx(ctx, func(tx *gorm.DB) error {
			if _, err := batches.FindForUpdateTx(ctx, tx, batch.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	start := time.Now()
	err := waiter.WithinTx(ctx, func(tx *gorm.DB) error {
		_, err := batches.FindForUpdateTx(ctx, tx, batch.ID)
		return err
	})
	require.Error(t, err)
	assert.True(t, repository.IsLockFailure(err), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)

	close(release)
	require.NoError(t, <-done)

	// Once the holder commits the lock is free again.
	err = waiter.WithinTx(ctx, func(tx *gorm.DB) error {
		_, err := batches.FindForUpdateTx(ctx, tx, batch.ID)
		return err
	})
	assert.NoError(t, err)
}

func TestIntegration_GuardedDecrement(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	batch := seedBatch(t, db, 3)
	batches := repository.NewStockBatchRepository(db)
	tx := repository.NewTransactor(db, time.Second)

	var applied bool
	require.NoError(t, tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		applied, err = batches.AddQuantityTx(ctx, tx, batch.ID, -4)
		return err
	}))
	assert.False(t, applied)

	require.NoError(t, tx.WithinTx(ctx, func(tx *gorm.DB) error {
		var err error
		applied, err = batches.AddQuantityTx(ctx, tx, batch.ID, -3)
		return err
	}))
	assert.True(t, applied)

	got, err := batches.FindByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)

	// The CHECK constraint backs the guard.
	err = db.Exec("UPDATE stock_batches SET quantity = -1 WHERE id = ?", batch.ID).Error
	assert.Error(t, err)
}

func TestIntegration_RollbackOnError(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	batch := seedBatch(t, db, 10)
	batches := repository.NewStockBatchRepository(db)

	boom := errors.New("boom")
	err := repository.NewTransactor(db, time.Second).WithinTx(ctx, func(tx *gorm.DB) error {
		if _, err := batches.AddQuantityTx(ctx, tx, batch.ID, -4); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := batches.FindByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
}

func TestIntegration_IdempotencyKeyUnique(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	sales := repository.NewSaleRepository(db)
	tx := repository.NewTransactor(db, time.Second)

	newSale := func(key *string) *model.Sale {
		return &model.Sale{
			CustomerName:   "Ana",
			TotalAmount:    decimal.RequireFromString("10.00"),
			FinalAmount:    decimal.RequireFromString("10.00"),
			IdempotencyKey: key,
		}
	}
	insert := func(s *model.Sale) error {
		return tx.WithinTx(ctx, func(tx *gorm.DB) error { return sales.CreateTx(ctx, tx, s) })
	}

	// Sales without a key never collide.
	require.NoError(t, insert(newSale(nil)))
	require.NoError(t, insert(newSale(nil)))

	key := "6f1c0d4e-8b7a-4f0e-9c55-0d7f3b1e2a10"
	first := newSale(&key)
	require.NoError(t, insert(first))

	err := insert(newSale(&key))
	require.Error(t, err)
	assert.True(t, repository.IsUniqueViolation(err), "got %v", err)

	stored, err := sales.FindByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
}

func TestIntegration_SoldBatchCannotBeDeleted(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	batch := seedBatch(t, db, 10)
	batches := repository.NewStockBatchRepository(db)
	sales := repository.NewSaleRepository(db)
	catalog := repository.NewCatalogRepository(db)

	sale := &model.Sale{
		CustomerName: "Ana",
		TotalAmount:  decimal.RequireFromString("20.00"),
		FinalAmount:  decimal.RequireFromString("20.00"),
	}
	require.NoError(t, repository.NewTransactor(db, time.Second).WithinTx(ctx, func(tx *gorm.DB) error {
		if err := sales.CreateTx(ctx, tx, sale); err != nil {
			return err
		}
		return sales.CreateItemTx(ctx, tx, &model.SaleItem{
			SaleID:       sale.ID,
			StockBatchID: batch.ID,
			Quantity:     2,
			UnitPrice:    decimal.RequireFromString("10.00"),
			TotalPrice:   decimal.RequireFromString("20.00"),
		})
	}))

	err := batches.Delete(ctx, batch.ID)
	require.Error(t, err)
	assert.True(t, repository.IsForeignKeyViolation(err), "got %v", err)

	// The product cascade reaches the batch and stops there.
	err = catalog.DeleteProduct(ctx, batch.ProductID)
	require.Error(t, err)
	assert.True(t, repository.IsForeignKeyViolation(err), "got %v", err)

	stored, err := sales.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, batch.ID, stored.Items[0].StockBatchID)
	require.NotNil(t, stored.Items[0].StockBatch)
	assert.Equal(t, 10, stored.Items[0].StockBatch.Quantity)

	// Deleting the sale releases the batch.
	require.NoError(t, db.Delete(&model.Sale{}, sale.ID).Error)
	assert.NoError(t, batches.Delete(ctx, batch.ID))
}

func TestIntegration_CountCustomersIgnoresEmailCase(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	sales := repository.NewSaleRepository(db)

	for _, email := range []string{"Ana@Example.com", "ana@example.com", "ANA@EXAMPLE.COM", "bo@example.com", ""} {
		s := &model.Sale{
			CustomerName:  "Customer",
			CustomerEmail: email,
			TotalAmount:   decimal.RequireFromString("1.00"),
			FinalAmount:   decimal.RequireFromString("1.00"),
		}
		require.NoError(t, db.Omit("Items", "CreatedBy").Create(s).Error)
	}

	n, err := sales.CountCustomers(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
