/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  The engine talks to storage through these interfaces only. A Store is
  always bound to one unit of work when the engine uses it: every read sees
  the writes made earlier in the same unit of work.

PRIMITIVES:
  - point read by id (GetProduct)
  - conditional decrement, compare-and-swap style (DecrementStock)
  - unconditional increment (IncrementStock)
  - absolute set, reconciliation only (SetStock)
  - insert with generated id (InsertInvoice, InsertLine, ...)
  - begin/commit/rollback scope (TxStore.WithTx)

IMPLEMENTATIONS:
  - store/sqlstore: database/sql, used by store/sqlite and store/mysql
  - inventory/store: in-memory, for tests and local runs

SEE ALSO:
  - uow.go: the only caller of WithTx
*/
package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STOCK LEDGER - On-hand quantity per product
// =============================================================================

// StockLedger is the single source of truth for on-hand quantity.
// Stock is never written except through these methods.
type StockLedger interface {
	// GetProduct returns the stock row, or nil if it does not exist.
	// Implementations lock the row for the rest of the unit of work where
	// the database supports it.
	GetProduct(ctx context.Context, id ProductID) (*ProductSnapshot, error)

	// DecrementStock subtracts qty only if stock_quantity >= qty at write
	// time. Returns false when no row was changed.
	DecrementStock(ctx context.Context, id ProductID, qty decimal.Decimal) (bool, error)

	// IncrementStock adds qty. Returns false if the product does not exist.
	IncrementStock(ctx context.Context, id ProductID, qty decimal.Decimal) (bool, error)

	// SetStock overwrites stock_quantity. Returns false if the product does not exist.
	SetStock(ctx context.Context, id ProductID, qty decimal.Decimal) (bool, error)
}

// =============================================================================
// DOCUMENT STORE - Headers, lines, reconciliations
// =============================================================================

type DocumentStore interface {
	// NextSequence increments and returns the counter for kind.
	NextSequence(ctx context.Context, kind Kind) (int64, error)

	// InsertInvoice writes the header only and returns its generated id.
	// Returns a DuplicateInvoiceError if the invoice number is taken.
	InsertInvoice(ctx context.Context, inv *Invoice) (int64, error)

	// InsertLine writes one line item of the given header.
	InsertLine(ctx context.Context, kind Kind, invoiceID int64, line *LineItem) (int64, error)

	InsertReconciliation(ctx context.Context, r *Reconciliation) (int64, error)

	InsertProduct(ctx context.Context, p *Product) (ProductID, error)
}

// Store is everything a unit of work may touch.
type Store interface {
	StockLedger
	DocumentStore
}

// TxStore runs functions inside an atomic scope.
type TxStore interface {
	// WithTx executes fn within a transaction.
	// If fn returns error (or panics), the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// READ MODELS - Committed state only
// =============================================================================

// Reader serves committed documents and products. It is never used inside
// a unit of work.
type Reader interface {
	Product(ctx context.Context, id ProductID) (*Product, error)
	Products(ctx context.Context) ([]Product, error)
	LowStockProducts(ctx context.Context, threshold decimal.Decimal) ([]Product, error)

	Invoice(ctx context.Context, kind Kind, id int64) (*Invoice, error)
	Invoices(ctx context.Context, kind Kind, limit int) ([]Invoice, error)

	Reconciliation(ctx context.Context, id int64) (*Reconciliation, error)
	Reconciliations(ctx context.Context, limit int) ([]Reconciliation, error)
}
