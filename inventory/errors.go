/*
errors.go - Error taxonomy for the stock engine

PURPOSE:
  All failures a unit of work can end with, in one place. The HTTP layer
  maps each of them 1:1 to a response; nothing is swallowed.

ERROR CATEGORIES:
  1. Business rejections - product missing, stock short, duplicate invoice,
     invalid product
  2. Conflicts - guarded write lost a race after the pre-check passed, or
     the database aborted the unit of work over a lock
  3. Capacity - no unit-of-work slot within the acquire timeout
  4. Persistence - anything the storage layer raised

USAGE:
  Structured errors unwrap to a sentinel, so callers branch with errors.Is
  and read details with errors.As:

    var short *inventory.InsufficientStockError
    if errors.As(err, &short) {
        fmt.Println(short.Available, short.Required)
    }

SEE ALSO:
  - uow.go: wraps raw storage errors into PersistenceError
  - api/errors.go: status code mapping
*/
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrProductNotFound is returned when a referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned when a sale asks for more than is on hand.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConcurrentStockConflict is returned when the guarded decrement fails
	// although the pre-check passed earlier in the same unit of work.
	ErrConcurrentStockConflict = errors.New("concurrent stock conflict")

	// ErrInvalidProduct is returned for a product the engine refuses to create.
	ErrInvalidProduct = errors.New("invalid product")

	// ErrDuplicateInvoice is returned when the invoice number is already used.
	ErrDuplicateInvoice = errors.New("duplicate invoice number")

	// ErrBusy is returned when no unit-of-work slot frees up in time.
	ErrBusy = errors.New("too many concurrent units of work")

	// ErrPersistence marks any failure raised by the storage layer.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ProductNotFoundError struct {
	ProductID ProductID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with ID %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error {
	return ErrProductNotFound
}

// InsufficientStockError carries what the user needs to adjust the quantity.
type InsufficientStockError struct {
	ProductID   ProductID
	ProductName string
	Available   decimal.Decimal
	Required    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s. Available: %s, Required: %s",
		e.ProductName, e.Available.String(), e.Required.String())
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// StockConflictError reports a guarded write that found less stock than the
// pre-check saw.
type StockConflictError struct {
	ProductID   ProductID
	ProductName string
	Available   decimal.Decimal
	Required    decimal.Decimal
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock for product %s changed during the transaction. Available: %s, Required: %s",
		e.ProductName, e.Available.String(), e.Required.String())
}

func (e *StockConflictError) Unwrap() error {
	return ErrConcurrentStockConflict
}

// LockConflictError reports a unit of work the database aborted because a
// concurrent one held the rows it needed. The driver error is kept for logs.
type LockConflictError struct {
	Err error
}

func (e *LockConflictError) Error() string {
	return "stock was locked by a concurrent transaction, retry the request"
}

func (e *LockConflictError) Unwrap() []error {
	return []error{ErrConcurrentStockConflict, e.Err}
}

type DuplicateInvoiceError struct {
	Kind          Kind
	InvoiceNumber string
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("%s invoice number %q already exists", e.Kind, e.InvoiceNumber)
}

func (e *DuplicateInvoiceError) Unwrap() error {
	return ErrDuplicateInvoice
}

// InvalidProductError rejects a product before any storage is touched.
type InvalidProductError struct {
	Field   string
	Message string
}

func (e *InvalidProductError) Error() string {
	return fmt.Sprintf("invalid product: %s %s", e.Field, e.Message)
}

func (e *InvalidProductError) Unwrap() error {
	return ErrInvalidProduct
}

// PersistenceError hides storage detail from callers. Error() is safe to
// show; the driver error stays reachable through errors.Is/As for logs.
type PersistenceError struct {
	Op   string
	Code string // diagnostic id, logged next to the internal error
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("internal storage failure (code %s)", e.Code)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if resubmitting the same request might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentStockConflict) || errors.Is(err, ErrBusy)
}

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrConcurrentStockConflict) ||
		errors.Is(err, ErrDuplicateInvoice) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInvalidProduct)
}

// IsNotFound returns true if the error indicates a missing product.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}

// IsStockShortage covers both the pre-check and the guarded-write failure.
func IsStockShortage(err error) bool {
	return errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrConcurrentStockConflict)
}

// Classify returns a stable label for err, used for metrics and responses.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrConcurrentStockConflict):
		return "stock_conflict"
	case errors.Is(err, ErrDuplicateInvoice):
		return "duplicate_invoice"
	case errors.Is(err, ErrInvalidProduct):
		return "invalid_product"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "persistence_failure"
	}
}
