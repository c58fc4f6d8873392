/*
Package inventory provides the transactional stock-mutation engine.

PURPOSE:
  Sales, purchases and stock reconciliations are the only operations that
  change how much of a product is on hand. Each of them runs as a single
  unit of work: validate, write the document, adjust stock, commit. Any
  failure rolls the whole unit back.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: the stock row, single source of truth for on-hand quantity
  - Invoice: a sale or purchase header owning ordered line items
  - LineItem: one product/quantity/price row with derived GST amounts
  - Reconciliation: a physical count that overwrites stock absolutely
  - Actor: the already-authenticated caller, recorded on every document

PRECISION:
  Quantities and money use decimal.Decimal. Quantities carry up to three
  decimal places, money two.

SEE ALSO:
  - guard.go: stock sufficiency checks
  - writer.go: sale and purchase paths
  - reconcile.go: physical count path
  - uow.go: unit-of-work coordinator
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// QuantityScale is the number of decimal places kept for stock quantities.
	QuantityScale int32 = 3
	// MoneyScale is the number of decimal places kept for amounts.
	MoneyScale int32 = 2
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID int64

// Actor is the resolved caller identity handed in by the HTTP boundary.
// The engine records it but never authorizes against it.
type Actor struct {
	ID   string
	Role string
}

// =============================================================================
// PRODUCT - Stock row
// =============================================================================

type Product struct {
	ID            ProductID
	Code          string
	Name          string
	StockQuantity decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductSnapshot is the stock row as observed inside a unit of work.
type ProductSnapshot struct {
	ID            ProductID
	Name          string
	StockQuantity decimal.Decimal
}

// =============================================================================
// INVOICE - Sale or purchase header with line items
// =============================================================================

type Invoice struct {
	Kind           Kind
	ID             int64
	Code           string
	CounterpartyID int64 // customer for sales, supplier for purchases
	InvoiceNumber  string
	InvoiceDate    time.Time
	TotalAmount    decimal.Decimal
	GSTAmount      decimal.Decimal
	NetAmount      decimal.Decimal
	Notes          string
	CreatedBy      string
	CreatedAt      time.Time
	Lines          []LineItem
}

type LineItem struct {
	ID        int64
	LineNo    int
	ProductID ProductID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	GSTRate   decimal.Decimal // percent, 0-100

	// Derived by ComputeLine, never taken from the caller.
	Amount      decimal.Decimal // quantity * unit price
	GSTAmount   decimal.Decimal // amount * rate / 100
	TotalAmount decimal.Decimal // amount + gst
}

// ComputeLine returns the line with its derived amounts filled in.
func ComputeLine(l LineItem) LineItem {
	l.Amount = l.Quantity.Mul(l.UnitPrice).Round(MoneyScale)
	l.GSTAmount = l.Amount.Mul(l.GSTRate).Div(hundred).Round(MoneyScale)
	l.TotalAmount = l.Amount.Add(l.GSTAmount)
	return l
}

// LineTotals sums amount, gst and grand total across lines.
func LineTotals(lines []LineItem) (amount, gst, total decimal.Decimal) {
	for _, l := range lines {
		amount = amount.Add(l.Amount)
		gst = gst.Add(l.GSTAmount)
		total = total.Add(l.TotalAmount)
	}
	return amount, gst, total
}

// Receipt is returned when a sale or purchase commits.
type Receipt struct {
	Kind  Kind
	ID    int64
	Code  string
	Lines []LineItem
}

// =============================================================================
// RECONCILIATION - Physical count
// =============================================================================

type Reconciliation struct {
	ID               int64
	Code             string
	ProductID        ProductID
	CurrentQuantity  decimal.Decimal // system value when the count was recorded
	ActualQuantity   decimal.Decimal // physically counted
	Difference       decimal.Decimal // actual - current
	AdjustmentReason string
	Notes            string
	CreatedBy        string
	CreatedAt        time.Time
}

// ReconRequest is the caller's physical count. Difference is accepted so
// payloads from older clients decode, but it is always recomputed.
type ReconRequest struct {
	ProductID        ProductID
	ActualQuantity   decimal.Decimal
	Difference       *decimal.Decimal
	AdjustmentReason string
	Notes            string
}

type ReconResult struct {
	ID              int64
	Code            string
	CurrentQuantity decimal.Decimal
	ActualQuantity  decimal.Decimal
	Difference      decimal.Decimal
}
