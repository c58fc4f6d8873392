package inventory

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// ENGINE - Entry points, one unit of work each
// =============================================================================

// Engine runs sales, purchases, reconciliations and product creation as
// units of work on a Coordinator.
type Engine struct {
	uow *Coordinator

	// OnTransition, if set, observes writer state changes. Committed and
	// RolledBack are reported after the scope closes, with a nil Store.
	OnTransition TransitionFunc
}

func NewEngine(uow *Coordinator) *Engine {
	return &Engine{uow: uow}
}

// CreateSale persists a sale and decrements stock for each line.
func (e *Engine) CreateSale(ctx context.Context, actor Actor, inv Invoice) (*Receipt, error) {
	inv.Kind = KindSale
	return e.writeInvoice(ctx, "create_sale", actor, inv)
}

// CreatePurchase persists a purchase and increments stock for each line.
func (e *Engine) CreatePurchase(ctx context.Context, actor Actor, inv Invoice) (*Receipt, error) {
	inv.Kind = KindPurchase
	return e.writeInvoice(ctx, "create_purchase", actor, inv)
}

func (e *Engine) writeInvoice(ctx context.Context, op string, actor Actor, inv Invoice) (*Receipt, error) {
	inv.CreatedBy = actor.ID
	inv.CreatedAt = time.Now().UTC()
	inv.Lines = append([]LineItem(nil), inv.Lines...)

	receipt, err := Run(ctx, e.uow, op, func(ctx context.Context, store Store) (*Receipt, error) {
		return NewWriter(store, e.OnTransition).Write(ctx, &inv)
	})
	e.finish(ctx, inv.Kind, err)
	return receipt, err
}

// Reconcile records a physical count and overwrites the product's stock.
func (e *Engine) Reconcile(ctx context.Context, actor Actor, req ReconRequest) (*ReconResult, error) {
	result, err := Run(ctx, e.uow, "reconcile", func(ctx context.Context, store Store) (*ReconResult, error) {
		return Reconcile(ctx, store, actor, req)
	})
	e.finish(ctx, KindReconciliation, err)
	return result, err
}

// CreateProduct adds a product with its opening stock and a generated code.
func (e *Engine) CreateProduct(ctx context.Context, actor Actor, p Product) (*Product, error) {
	if p.StockQuantity.IsNegative() {
		return nil, &InvalidProductError{Field: "stock_quantity", Message: "must not be negative"}
	}
	return Run(ctx, e.uow, "create_product", func(ctx context.Context, store Store) (*Product, error) {
		seq, err := store.NextSequence(ctx, KindProduct)
		if err != nil {
			return nil, fmt.Errorf("next %s sequence: %w", KindProduct, err)
		}
		if p.Code, err = FormatCode(KindProduct, seq); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		p.CreatedAt, p.UpdatedAt = now, now
		if p.ID, err = store.InsertProduct(ctx, &p); err != nil {
			return nil, fmt.Errorf("insert product: %w", err)
		}
		return &p, nil
	})
}

func (e *Engine) finish(ctx context.Context, kind Kind, err error) {
	if e.OnTransition == nil {
		return
	}
	if err != nil {
		e.OnTransition(ctx, kind, StateRolledBack, nil)
		return
	}
	e.OnTransition(ctx, kind, StateCommitted, nil)
}
