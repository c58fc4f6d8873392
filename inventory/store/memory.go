// Package store provides an in-memory inventory.TxStore.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory serializes units of work behind one lock. A unit of work writes
// directly into the maps; a snapshot taken at begin is restored if it fails.
type Memory struct {
	mu        sync.RWMutex
	products  map[inventory.ProductID]inventory.Product
	invoices  map[inventory.Kind][]inventory.Invoice
	recons    []inventory.Reconciliation
	sequences map[inventory.Kind]int64
	lastID    int64
}

func NewMemory() *Memory {
	return &Memory{
		products:  make(map[inventory.ProductID]inventory.Product),
		invoices:  make(map[inventory.Kind][]inventory.Invoice),
		sequences: make(map[inventory.Kind]int64),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := m.snapshot()
	committed := false
	defer func() {
		if !committed {
			m.restore(snap)
		}
	}()

	if err := fn(&view{m: m}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

type memorySnapshot struct {
	products  map[inventory.ProductID]inventory.Product
	invoices  map[inventory.Kind][]inventory.Invoice
	recons    []inventory.Reconciliation
	sequences map[inventory.Kind]int64
	lastID    int64
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		products:  make(map[inventory.ProductID]inventory.Product, len(m.products)),
		invoices:  make(map[inventory.Kind][]inventory.Invoice, len(m.invoices)),
		recons:    append([]inventory.Reconciliation(nil), m.recons...),
		sequences: make(map[inventory.Kind]int64, len(m.sequences)),
		lastID:    m.lastID,
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.invoices {
		s.invoices[k] = append([]inventory.Invoice(nil), v...)
	}
	for k, v := range m.sequences {
		s.sequences[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.products = s.products
	m.invoices = s.invoices
	m.recons = s.recons
	m.sequences = s.sequences
	m.lastID = s.lastID
}

// view is the inventory.Store handed to fn. The parent lock is held.
type view struct {
	m *Memory
}

func (v *view) nextID() int64 {
	v.m.lastID++
	return v.m.lastID
}

func (v *view) GetProduct(_ context.Context, id inventory.ProductID) (*inventory.ProductSnapshot, error) {
	p, ok := v.m.products[id]
	if !ok {
		return nil, nil
	}
	return &inventory.ProductSnapshot{ID: p.ID, Name: p.Name, StockQuantity: p.StockQuantity}, nil
}

func (v *view) DecrementStock(_ context.Context, id inventory.ProductID, qty decimal.Decimal) (bool, error) {
	p, ok := v.m.products[id]
	if !ok || p.StockQuantity.LessThan(qty) {
		return false, nil
	}
	p.StockQuantity = p.StockQuantity.Sub(qty)
	v.m.products[id] = p
	return true, nil
}

func (v *view) IncrementStock(_ context.Context, id inventory.ProductID, qty decimal.Decimal) (bool, error) {
	p, ok := v.m.products[id]
	if !ok {
		return false, nil
	}
	p.StockQuantity = p.StockQuantity.Add(qty)
	v.m.products[id] = p
	return true, nil
}

func (v *view) SetStock(_ context.Context, id inventory.ProductID, qty decimal.Decimal) (bool, error) {
	p, ok := v.m.products[id]
	if !ok {
		return false, nil
	}
	p.StockQuantity = qty
	v.m.products[id] = p
	return true, nil
}

func (v *view) NextSequence(_ context.Context, kind inventory.Kind) (int64, error) {
	v.m.sequences[kind]++
	return v.m.sequences[kind], nil
}

func (v *view) InsertInvoice(_ context.Context, inv *inventory.Invoice) (int64, error) {
	for _, existing := range v.m.invoices[inv.Kind] {
		if existing.InvoiceNumber != inv.InvoiceNumber {
			continue
		}
		// purchase numbers are unique per supplier, sale numbers globally
		if inv.Kind == inventory.KindSale || existing.CounterpartyID == inv.CounterpartyID {
			return 0, &inventory.DuplicateInvoiceError{Kind: inv.Kind, InvoiceNumber: inv.InvoiceNumber}
		}
	}
	stored := *inv
	stored.ID = v.nextID()
	stored.Lines = nil
	v.m.invoices[inv.Kind] = append(v.m.invoices[inv.Kind], stored)
	return stored.ID, nil
}

func (v *view) InsertLine(_ context.Context, kind inventory.Kind, invoiceID int64, line *inventory.LineItem) (int64, error) {
	list := v.m.invoices[kind]
	for i := range list {
		if list[i].ID == invoiceID {
			stored := *line
			stored.ID = v.nextID()
			list[i].Lines = append(list[i].Lines, stored)
			return stored.ID, nil
		}
	}
	return 0, errMissingHeader
}

func (v *view) InsertReconciliation(_ context.Context, r *inventory.Reconciliation) (int64, error) {
	stored := *r
	stored.ID = v.nextID()
	v.m.recons = append(v.m.recons, stored)
	return stored.ID, nil
}

func (v *view) InsertProduct(_ context.Context, p *inventory.Product) (inventory.ProductID, error) {
	stored := *p
	stored.ID = inventory.ProductID(v.nextID())
	v.m.products[stored.ID] = stored
	return stored.ID, nil
}

// =============================================================================
// READ MODELS
// =============================================================================

func (m *Memory) Product(_ context.Context, id inventory.ProductID) (*inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) Products(ctx context.Context) ([]inventory.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]inventory.Product, 0, len(m.products))
	for _, p := range m.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) LowStockProducts(ctx context.Context, threshold decimal.Decimal) ([]inventory.Product, error) {
	all, err := m.Products(ctx)
	if err != nil {
		return nil, err
	}
	var result []inventory.Product
	for _, p := range all {
		if p.StockQuantity.LessThan(threshold) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *Memory) Invoice(_ context.Context, kind inventory.Kind, id int64) (*inventory.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invoices[kind] {
		if inv.ID == id {
			inv.Lines = append([]inventory.LineItem(nil), inv.Lines...)
			return &inv, nil
		}
	}
	return nil, nil
}

func (m *Memory) Invoices(_ context.Context, kind inventory.Kind, limit int) ([]inventory.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.invoices[kind]
	var result []inventory.Invoice
	for i := len(list) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		inv := list[i]
		inv.Lines = nil // headers only, like the SQL stores
		result = append(result, inv)
	}
	return result, nil
}

func (m *Memory) Reconciliation(_ context.Context, id int64) (*inventory.Reconciliation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.recons {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *Memory) Reconciliations(_ context.Context, limit int) ([]inventory.Reconciliation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []inventory.Reconciliation
	for i := len(m.recons) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		result = append(result, m.recons[i])
	}
	return result, nil
}
