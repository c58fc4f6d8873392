package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STOCK GUARD - Sufficiency checks before any mutation
// =============================================================================

// CheckAvailability reads the product through the unit of work's ledger and
// fails if it is missing or holds less than required.
func CheckAvailability(ctx context.Context, ledger StockLedger, id ProductID, required decimal.Decimal) (*ProductSnapshot, error) {
	p, err := ledger.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read stock for product %d: %w", id, err)
	}
	if p == nil {
		return nil, &ProductNotFoundError{ProductID: id}
	}
	if p.StockQuantity.LessThan(required) {
		return nil, &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.StockQuantity,
			Required:    required,
		}
	}
	return p, nil
}

// Guard checks every line of a sale before anything is written. Lines that
// repeat a product are checked against their running total, so a sale of
// 3+3 against a stock of 5 is rejected here rather than at write time.
type Guard struct {
	ledger   StockLedger
	reserved map[ProductID]decimal.Decimal
}

func NewGuard(ledger StockLedger) *Guard {
	return &Guard{ledger: ledger, reserved: make(map[ProductID]decimal.Decimal)}
}

// Reserve checks one line and records its quantity against the product.
func (g *Guard) Reserve(ctx context.Context, line LineItem) (*ProductSnapshot, error) {
	required := g.reserved[line.ProductID].Add(line.Quantity)
	p, err := CheckAvailability(ctx, g.ledger, line.ProductID, required)
	if err != nil {
		return nil, err
	}
	g.reserved[line.ProductID] = required
	return p, nil
}

// CheckAll runs Reserve over lines in submission order and stops at the
// first failing line. It returns the snapshots keyed by product.
func (g *Guard) CheckAll(ctx context.Context, lines []LineItem) (map[ProductID]*ProductSnapshot, error) {
	seen := make(map[ProductID]*ProductSnapshot, len(lines))
	for _, line := range lines {
		p, err := g.Reserve(ctx, line)
		if err != nil {
			return nil, err
		}
		seen[p.ID] = p
	}
	return seen, nil
}
