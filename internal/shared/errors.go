package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound indicates an unknown or inactive product.
	ErrProductNotFound = errors.New("product not found")
	// ErrSaleNotFound indicates an unknown sale.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrSaleItemNotFound indicates a sale item that does not belong to the sale.
	ErrSaleItemNotFound = errors.New("sale item not found")
	// ErrStoreNotFound indicates an unknown store.
	ErrStoreNotFound = errors.New("store not found")
	// ErrValidation flags input rejected before any state is read.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidReturnType flags an unknown return type in a batch entry.
	ErrInvalidReturnType = errors.New("invalid return type")
	// ErrConcurrencyConflict is surfaced when a conditional stock update
	// lost the race even after one retry with a fresh read.
	ErrConcurrencyConflict = errors.New("concurrent stock update conflict")
	// ErrForbidden indicates the caller's role lacks the capability.
	ErrForbidden = errors.New("forbidden")
)

// Validationf wraps ErrValidation with a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InsufficientStockError reports a stock pool that cannot cover a deduction.
type InsufficientStockError struct {
	StockType string
	Available int64
	Required  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient %s stock: available %d, required %d", e.StockType, e.Available, e.Required)
}

// OverReturnError reports a return request exceeding the remaining returnable quantity.
type OverReturnError struct {
	Requested int64
	Remaining int64
}

func (e *OverReturnError) Error() string {
	return fmt.Sprintf("over-return: requested %d, returnable remaining %d", e.Requested, e.Remaining)
}

// InvalidTransitionError reports a sale status machine violation.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid sale transition: %s -> %s", e.From, e.To)
}
