package inventory

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// RECONCILIATION ENGINE - Physical count overwrites stock
// =============================================================================

// Reconcile records a physical count and sets stock to it.
//
// The difference is always actual - current, where current is the stock
// observed at the start of this unit of work. A difference sent by the
// caller is ignored. The record and the stock update share the caller's
// unit of work: if either fails, neither is kept.
func Reconcile(ctx context.Context, store Store, actor Actor, req ReconRequest) (*ReconResult, error) {
	p, err := store.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("read product %d: %w", req.ProductID, err)
	}
	if p == nil {
		return nil, &ProductNotFoundError{ProductID: req.ProductID}
	}

	seq, err := store.NextSequence(ctx, KindReconciliation)
	if err != nil {
		return nil, fmt.Errorf("next %s sequence: %w", KindReconciliation, err)
	}
	code, err := FormatCode(KindReconciliation, seq)
	if err != nil {
		return nil, err
	}

	rec := &Reconciliation{
		Code:             code,
		ProductID:        p.ID,
		CurrentQuantity:  p.StockQuantity,
		ActualQuantity:   req.ActualQuantity,
		Difference:       req.ActualQuantity.Sub(p.StockQuantity),
		AdjustmentReason: req.AdjustmentReason,
		Notes:            req.Notes,
		CreatedBy:        actor.ID,
		CreatedAt:        time.Now().UTC(),
	}
	id, err := store.InsertReconciliation(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("insert reconciliation: %w", err)
	}

	ok, err := store.SetStock(ctx, p.ID, req.ActualQuantity)
	if err != nil {
		return nil, fmt.Errorf("set stock for product %d: %w", p.ID, err)
	}
	if !ok {
		return nil, &ProductNotFoundError{ProductID: p.ID}
	}

	return &ReconResult{
		ID:              id,
		Code:            code,
		CurrentQuantity: rec.CurrentQuantity,
		ActualQuantity:  rec.ActualQuantity,
		Difference:      rec.Difference,
	}, nil
}
