package infra

import (
	"fmt"

	"pharmapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx. Schema changes are
// left to RunMigrations so the server and the integration tests share them.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}

// RunMigrations creates / updates every table through AutoMigrate, then applies
// the idempotent SQL patches GORM cannot express.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Brand{},
		&model.Category{},
		&model.Product{},
		&model.StockBatch{},
		&model.Sale{},
		&model.SaleItem{},
		&model.StockMovement{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// fully handle on its own (constraints on tables created before the model tag
// existed, partial and expression indexes). Each statement is guarded so
// re-running on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// AutoMigrate only adds CHECK constraints when it creates the table.
		{"stock_batches quantity check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_stock_batches_quantity') THEN
    ALTER TABLE stock_batches ADD CONSTRAINT chk_stock_batches_quantity CHECK (quantity >= 0);
  END IF;
END $$`},
		{"sale_items quantity check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_sale_items_quantity') THEN
    ALTER TABLE sale_items ADD CONSTRAINT chk_sale_items_quantity CHECK (quantity > 0);
  END IF;
END $$`},
		// Deleting a sale removes its lines.
		{"sale_items.sale_id cascade", `
DO $$ BEGIN
  IF EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_sales_items' AND confdeltype <> 'c') THEN
    ALTER TABLE sale_items DROP CONSTRAINT fk_sales_items;
    ALTER TABLE sale_items ADD CONSTRAINT fk_sales_items
      FOREIGN KEY (sale_id) REFERENCES sales(id) ON DELETE CASCADE;
  END IF;
END $$`},
		// Sale lines are immutable: a referenced batch cannot be deleted, and
		// the product/brand/category cascades stop at a sold batch.
		{"sale_items.stock_batch_id restrict", `
DO $$ BEGIN
  IF EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_sale_items_stock_batch' AND confdeltype <> 'r') THEN
    ALTER TABLE sale_items DROP CONSTRAINT fk_sale_items_stock_batch;
    ALTER TABLE sale_items ADD CONSTRAINT fk_sale_items_stock_batch
      FOREIGN KEY (stock_batch_id) REFERENCES stock_batches(id) ON DELETE RESTRICT;
  END IF;
END $$`},
		// NULL keys never collide; the partial index keeps it small.
		{"sales idempotency key partial unique index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uq_sales_idempotency_key') THEN
    CREATE UNIQUE INDEX uq_sales_idempotency_key ON sales (idempotency_key)
      WHERE idempotency_key IS NOT NULL;
  END IF;
END $$`},
		// Dashboard counts distinct customer emails per month.
		{"sales customer email index",
			`CREATE INDEX IF NOT EXISTS idx_sales_customer_email ON sales (LOWER(customer_email)) WHERE customer_email <> ''`},
		// Expiring-stock listing scans by date then product.
		{"stock_batches expiry index",
			`CREATE INDEX IF NOT EXISTS idx_stock_batches_expiry_product ON stock_batches (expiration_date, product_id)`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
