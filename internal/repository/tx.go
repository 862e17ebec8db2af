package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Transactor runs fn inside a single database transaction. Returning an error
// from fn (or panicking) rolls back every write fn made through tx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewTransactor returns a Transactor backed by gorm. A positive lockTimeout
// bounds how long any statement in the transaction waits for a row lock.
func NewTransactor(db *gorm.DB, lockTimeout time.Duration) Transactor {
	return &gormTransactor{db: db, lockTimeout: lockTimeout}
}

func (t *gormTransactor) WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.lockTimeout > 0 {
			// SET does not accept bind parameters; the value is an integer.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", t.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock_timeout: %w", err)
			}
		}
		return fn(tx)
	})
}

// ── PostgreSQL error classification ─────────────────────────────────────────

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

// IsForeignKeyViolation reports whether err is a foreign key violation, such
// as deleting a row that other rows still reference.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsLockFailure reports whether err means a row lock could not be obtained in
// time: lock_timeout expiry, a detected deadlock, a serialization failure, or
// the caller's deadline passing while waiting.
func IsLockFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
		return true
	}
	return false
}

// IsNotFound reports whether err is gorm's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// pageOffset normalises page/limit the same way for every listing.
func pageOffset(page, limit, defLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defLimit
	}
	return (page - 1) * limit, limit
}
