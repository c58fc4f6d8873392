/*
writer.go - Sale and purchase write paths

PURPOSE:
  Persists a header with its line items and applies the stock deltas, all
  through the Store of one unit of work.

STATE MACHINE:
  Pending -> Validated -> HeaderWritten -> LinesWritten -> StockApplied -> Committed
  Any failure ends in RolledBack; the coordinator performs the rollback.

SALE:
  1. Guard checks every line (running totals per product)
  2. Header inserted with caller-supplied aggregates
  3. Lines inserted with recomputed gst/total, in submission order
  4. Each line decrements stock through the guarded update; a miss is
     fatal for the whole sale (StockConflictError)

PURCHASE:
  Same, but step 1 is an existence check only and step 4 increments
  unconditionally.

SEE ALSO:
  - guard.go: pre-check
  - uow.go: atomic scope around Write
*/
package inventory

import (
	"context"
	"fmt"
)

// =============================================================================
// STATES
// =============================================================================

type State int

const (
	StatePending State = iota
	StateValidated
	StateHeaderWritten
	StateLinesWritten
	StateStockApplied
	StateCommitted
	StateRolledBack
)

var stateNames = [...]string{
	"pending", "validated", "header_written", "lines_written",
	"stock_applied", "committed", "rolled_back",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

// TransitionFunc observes state changes of a write. It runs inside the
// unit of work and receives its Store.
type TransitionFunc func(ctx context.Context, kind Kind, s State, store Store)

// =============================================================================
// WRITER
// =============================================================================

// Writer writes one invoice through a unit-of-work Store.
type Writer struct {
	store   Store
	onState TransitionFunc
	state   State
}

func NewWriter(store Store, onState TransitionFunc) *Writer {
	return &Writer{store: store, onState: onState}
}

// State returns the last state reached.
func (w *Writer) State() State { return w.state }

func (w *Writer) advance(ctx context.Context, kind Kind, s State) {
	w.state = s
	if w.onState != nil {
		w.onState(ctx, kind, s, w.store)
	}
}

// Write dispatches on inv.Kind.
func (w *Writer) Write(ctx context.Context, inv *Invoice) (*Receipt, error) {
	switch inv.Kind {
	case KindSale:
		return w.WriteSale(ctx, inv)
	case KindPurchase:
		return w.WritePurchase(ctx, inv)
	default:
		return nil, fmt.Errorf("cannot write invoice of kind %q", inv.Kind)
	}
}

// WriteSale validates, writes and decrements stock for a sale.
func (w *Writer) WriteSale(ctx context.Context, inv *Invoice) (*Receipt, error) {
	inv.Kind = KindSale
	w.state = StatePending

	snapshots, err := NewGuard(w.store).CheckAll(ctx, inv.Lines)
	if err != nil {
		return nil, err
	}
	w.advance(ctx, inv.Kind, StateValidated)

	if err := w.writeDocument(ctx, inv); err != nil {
		return nil, err
	}

	for _, line := range inv.Lines {
		ok, err := w.store.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("decrement stock for product %d: %w", line.ProductID, err)
		}
		if !ok {
			return nil, w.conflict(ctx, line, snapshots[line.ProductID])
		}
	}
	w.advance(ctx, inv.Kind, StateStockApplied)

	return receiptFor(inv), nil
}

// WritePurchase writes a purchase and increments stock per line.
func (w *Writer) WritePurchase(ctx context.Context, inv *Invoice) (*Receipt, error) {
	inv.Kind = KindPurchase
	w.state = StatePending

	for _, line := range inv.Lines {
		p, err := w.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("read product %d: %w", line.ProductID, err)
		}
		if p == nil {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
	}
	w.advance(ctx, inv.Kind, StateValidated)

	if err := w.writeDocument(ctx, inv); err != nil {
		return nil, err
	}

	for _, line := range inv.Lines {
		ok, err := w.store.IncrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("increment stock for product %d: %w", line.ProductID, err)
		}
		if !ok {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
	}
	w.advance(ctx, inv.Kind, StateStockApplied)

	return receiptFor(inv), nil
}

// writeDocument covers HeaderWritten and LinesWritten for both paths.
func (w *Writer) writeDocument(ctx context.Context, inv *Invoice) error {
	for i := range inv.Lines {
		inv.Lines[i] = ComputeLine(inv.Lines[i])
		inv.Lines[i].LineNo = i + 1
	}
	if inv.TotalAmount.IsZero() && inv.GSTAmount.IsZero() && inv.NetAmount.IsZero() {
		inv.TotalAmount, inv.GSTAmount, inv.NetAmount = LineTotals(inv.Lines)
	}

	seq, err := w.store.NextSequence(ctx, inv.Kind)
	if err != nil {
		return fmt.Errorf("next %s sequence: %w", inv.Kind, err)
	}
	if inv.Code, err = FormatCode(inv.Kind, seq); err != nil {
		return err
	}

	id, err := w.store.InsertInvoice(ctx, inv)
	if err != nil {
		return err
	}
	inv.ID = id
	w.advance(ctx, inv.Kind, StateHeaderWritten)

	for i := range inv.Lines {
		lineID, err := w.store.InsertLine(ctx, inv.Kind, inv.ID, &inv.Lines[i])
		if err != nil {
			return fmt.Errorf("insert %s line %d: %w", inv.Kind, i+1, err)
		}
		inv.Lines[i].ID = lineID
	}
	w.advance(ctx, inv.Kind, StateLinesWritten)
	return nil
}

// conflict explains a failed guarded decrement by re-reading the row.
func (w *Writer) conflict(ctx context.Context, line LineItem, seen *ProductSnapshot) error {
	p, err := w.store.GetProduct(ctx, line.ProductID)
	if err != nil {
		return fmt.Errorf("re-read product %d: %w", line.ProductID, err)
	}
	if p == nil {
		return &ProductNotFoundError{ProductID: line.ProductID}
	}
	name := p.Name
	if name == "" && seen != nil {
		name = seen.Name
	}
	return &StockConflictError{
		ProductID:   line.ProductID,
		ProductName: name,
		Available:   p.StockQuantity,
		Required:    line.Quantity,
	}
}

func receiptFor(inv *Invoice) *Receipt {
	return &Receipt{Kind: inv.Kind, ID: inv.ID, Code: inv.Code, Lines: inv.Lines}
}
