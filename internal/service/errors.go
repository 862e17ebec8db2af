package service

import (
	"errors"
	"fmt"

	"pharmapos/internal/repository"
)

// Sentinel errors. Callers match them with errors.Is; the concrete error
// usually is a *SaleError carrying the batch and product involved.
var (
	ErrBatchNotFound     = errors.New("stock batch not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrLockTimeout       = errors.New("stock is locked by another sale, retry")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("invalid credentials")
)

// ErrorKind is the stable, client-facing classification of an error.
type ErrorKind string

const (
	KindBatchNotFound     ErrorKind = "BatchNotFound"
	KindInsufficientStock ErrorKind = "InsufficientStock"
	KindLockTimeout       ErrorKind = "LockTimeout"
	KindNotFound          ErrorKind = "NotFound"
	KindValidation        ErrorKind = "Validation"
	KindConflict          ErrorKind = "Conflict"
	KindUnauthorized      ErrorKind = "Unauthorized"
	KindInternal          ErrorKind = "Internal"
)

// SaleError is returned by the stock ledger and the sale orchestrator.
type SaleError struct {
	Kind      ErrorKind
	BatchID   uint
	Product   string
	Requested int
	Available int

	msg string
	err error
}

func (e *SaleError) Error() string { return e.msg }
func (e *SaleError) Unwrap() error { return e.err }

func batchNotFound(id uint) error {
	return &SaleError{
		Kind:    KindBatchNotFound,
		BatchID: id,
		msg:     fmt.Sprintf("stock batch with id %d does not exist", id),
		err:     ErrBatchNotFound,
	}
}

func insufficientStock(id uint, product string, requested, available int) error {
	return &SaleError{
		Kind:      KindInsufficientStock,
		BatchID:   id,
		Product:   product,
		Requested: requested,
		Available: available,
		msg:       fmt.Sprintf("insufficient stock for %s: requested %d, available %d", product, requested, available),
		err:       ErrInsufficientStock,
	}
}

func lockTimeout() error {
	return &SaleError{Kind: KindLockTimeout, msg: ErrLockTimeout.Error(), err: ErrLockTimeout}
}

// classifyTxError maps driver-level lock failures to ErrLockTimeout and leaves
// everything else untouched.
func classifyTxError(err error) error {
	var se *SaleError
	if errors.As(err, &se) {
		return err
	}
	if repository.IsLockFailure(err) {
		return lockTimeout()
	}
	return err
}

// Kind classifies err for transport layers.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBatchNotFound):
		return KindBatchNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrLockTimeout):
		return KindLockTimeout
	case errors.Is(err, ErrNotFound), repository.IsNotFound(err):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	}
	return KindInternal
}

// IsRetryable reports whether the same request may succeed if sent again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidInput}, args...)...)
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}
