package service

import (
	"context"
	"fmt"

	"pharmapos/internal/model"
	"pharmapos/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StockLedger is the only code path that changes a batch quantity. Every
// change happens inside a transaction that holds the batch's row lock and
// leaves a StockMovement behind.
type StockLedger struct {
	batches   repository.StockBatchRepository
	movements repository.StockMovementRepository
	tx        repository.Transactor
}

func NewStockLedger(
	batches repository.StockBatchRepository,
	movements repository.StockMovementRepository,
	tx repository.Transactor,
) *StockLedger {
	return &StockLedger{batches: batches, movements: movements, tx: tx}
}

// Open inserts a new batch and records its opening quantity.
func (l *StockLedger) Open(ctx context.Context, b *model.StockBatch) error {
	if b.Quantity < 0 {
		return invalidf("quantity must not be negative")
	}
	return l.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		if err := l.batches.CreateTx(ctx, tx, b); err != nil {
			return err
		}
		if b.Quantity == 0 {
			return nil
		}
		return l.movements.CreateTx(ctx, tx, &model.StockMovement{
			StockBatchID:  b.ID,
			Kind:          model.MovementRestock,
			Delta:         b.Quantity,
			QuantityAfter: b.Quantity,
			Reason:        "opening stock",
		})
	})
}

// LockBatch reads a batch and holds its row lock until tx ends.
func (l *StockLedger) LockBatch(ctx context.Context, tx *gorm.DB, id uint) (*model.StockBatch, error) {
	b, err := l.batches.FindForUpdateTx(ctx, tx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, batchNotFound(id)
		}
		return nil, err
	}
	return b, nil
}

// Decrement removes qty units from a batch locked in tx. saleID, when set,
// is recorded on the movement.
func (l *StockLedger) Decrement(ctx context.Context, tx *gorm.DB, b *model.StockBatch, qty int, saleID *uint) error {
	reason := ""
	if saleID != nil {
		reason = fmt.Sprintf("Sale #%d", *saleID)
	}
	return l.apply(ctx, tx, b, -qty, model.MovementSale, reason, saleID)
}

// apply moves b.Quantity by delta. The UPDATE is guarded by quantity+delta >= 0
// so the invariant holds even if the caller's check raced.
func (l *StockLedger) apply(ctx context.Context, tx *gorm.DB, b *model.StockBatch, delta int, kind, reason string, saleID *uint) error {
	ok, err := l.batches.AddQuantityTx(ctx, tx, b.ID, delta)
	if err != nil {
		return err
	}
	if !ok {
		return insufficientStock(b.ID, b.ProductName(), -delta, b.Quantity)
	}

	before := b.Quantity
	b.Quantity += delta
	return l.movements.CreateTx(ctx, tx, &model.StockMovement{
		StockBatchID:   b.ID,
		Kind:           kind,
		Delta:          delta,
		QuantityBefore: before,
		QuantityAfter:  b.Quantity,
		Reason:         reason,
		SaleID:         saleID,
	})
}

// ReserveAndDecrement atomically takes qty units from one batch in its own
// transaction.
func (l *StockLedger) ReserveAndDecrement(ctx context.Context, batchID uint, qty int) error {
	if qty <= 0 {
		return invalidf("quantity must be positive, got %d", qty)
	}
	err := l.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		b, err := l.LockBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if b.Quantity < qty {
			return insufficientStock(b.ID, b.ProductName(), qty, b.Quantity)
		}
		return l.Decrement(ctx, tx, b, qty, nil)
	})
	return classifyTxError(err)
}

// Restock adjusts a batch by delta (positive delivery or negative write-off).
// The result never goes below zero.
func (l *StockLedger) Restock(ctx context.Context, batchID uint, delta int, reason string) (*model.StockBatch, error) {
	if delta == 0 {
		return nil, invalidf("delta must not be zero")
	}
	kind := model.MovementRestock
	if delta < 0 {
		kind = model.MovementAdjustment
	}

	var out *model.StockBatch
	err := l.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		b, err := l.LockBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if b.Quantity+delta < 0 {
			return insufficientStock(b.ID, b.ProductName(), -delta, b.Quantity)
		}
		if err := l.apply(ctx, tx, b, delta, kind, reason, nil); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	log.Info().
		Uint("batch_id", batchID).
		Int("delta", delta).
		Int("quantity", out.Quantity).
		Str("kind", kind).
		Msg("stock adjusted")
	return out, nil
}
