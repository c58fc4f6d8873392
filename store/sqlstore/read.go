package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/inventory-engine/inventory"
)

// DefaultListLimit caps list queries when the caller passes no limit.
const DefaultListLimit = 100

// =============================================================================
// PRODUCTS (inventory.Reader interface)
// =============================================================================

const productColumns = `product_id, product_code, product_name, stock_quantity, created_at, updated_at`

func (s *Store) Product(ctx context.Context, id inventory.ProductID) (*inventory.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE product_id = ?`

	p, err := s.scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) Products(ctx context.Context) ([]inventory.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY product_id ASC`)
}

// LowStockProducts returns products with stock strictly below threshold.
func (s *Store) LowStockProducts(ctx context.Context, threshold decimal.Decimal) ([]inventory.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE stock_quantity < ?
		ORDER BY stock_quantity ASC, product_id ASC
	`, s.stockThreshold(threshold))
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]inventory.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Product
	for rows.Next() {
		p, err := s.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanProduct(row scanner) (inventory.Product, error) {
	var p inventory.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	p.StockQuantity = s.stockValue(p.StockQuantity)
	return p, err
}

// =============================================================================
// INVOICES
// =============================================================================

func invoiceColumns(t documentTables) string {
	return fmt.Sprintf(`%s, code, %s, invoice_number, invoice_date, total_amount, gst_amount,
		net_amount, notes, created_by, created_at`, t.id, t.counterparty)
}

// Invoice returns a header with its lines in submission order.
func (s *Store) Invoice(ctx context.Context, kind inventory.Kind, id int64) (*inventory.Invoice, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, invoiceColumns(t), t.header, t.id)
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id), kind)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	inv.Lines, err = s.lines(ctx, t, id)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Invoices returns headers only, newest first.
func (s *Store) Invoices(ctx context.Context, kind inventory.Kind, limit int) ([]inventory.Invoice, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, %s DESC LIMIT ?`,
		invoiceColumns(t), t.header, t.id)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows, kind)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (s *Store) lines(ctx context.Context, t documentTables, invoiceID int64) ([]inventory.LineItem, error) {
	query := fmt.Sprintf(`
		SELECT %s, line_no, product_id, quantity, unit_price, gst_rate, amount, gst_amount, total_amount
		FROM %s WHERE %s = ?
		ORDER BY line_no ASC
	`, t.detailID, t.detail, t.id)

	rows, err := s.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.LineItem
	for rows.Next() {
		var l inventory.LineItem
		if err := rows.Scan(&l.ID, &l.LineNo, &l.ProductID, &l.Quantity, &l.UnitPrice,
			&l.GSTRate, &l.Amount, &l.GSTAmount, &l.TotalAmount); err != nil {
			return nil, err
		}
		l.Quantity = l.Quantity.Round(inventory.QuantityScale)
		l.UnitPrice = l.UnitPrice.Round(inventory.MoneyScale)
		l.GSTRate = l.GSTRate.Round(inventory.MoneyScale)
		l.Amount = l.Amount.Round(inventory.MoneyScale)
		l.GSTAmount = l.GSTAmount.Round(inventory.MoneyScale)
		l.TotalAmount = l.TotalAmount.Round(inventory.MoneyScale)
		result = append(result, l)
	}
	return result, rows.Err()
}

func scanInvoice(row scanner, kind inventory.Kind) (inventory.Invoice, error) {
	inv := inventory.Invoice{Kind: kind}
	var notes sql.NullString
	err := row.Scan(&inv.ID, &inv.Code, &inv.CounterpartyID, &inv.InvoiceNumber, &inv.InvoiceDate,
		&inv.TotalAmount, &inv.GSTAmount, &inv.NetAmount, &notes, &inv.CreatedBy, &inv.CreatedAt)
	inv.Notes = notes.String
	inv.TotalAmount = inv.TotalAmount.Round(inventory.MoneyScale)
	inv.GSTAmount = inv.GSTAmount.Round(inventory.MoneyScale)
	inv.NetAmount = inv.NetAmount.Round(inventory.MoneyScale)
	return inv, err
}

// =============================================================================
// RECONCILIATIONS
// =============================================================================

const reconColumns = `recon_id, code, product_id, current_quantity, actual_quantity, difference,
	adjustment_reason, notes, created_by, created_at`

func (s *Store) Reconciliation(ctx context.Context, id int64) (*inventory.Reconciliation, error) {
	query := `SELECT ` + reconColumns + ` FROM stock_recon WHERE recon_id = ?`
	r, err := scanRecon(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Reconciliations(ctx context.Context, limit int) ([]inventory.Reconciliation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reconColumns+` FROM stock_recon ORDER BY created_at DESC, recon_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Reconciliation
	for rows.Next() {
		r, err := scanRecon(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanRecon(row scanner) (inventory.Reconciliation, error) {
	var r inventory.Reconciliation
	var notes sql.NullString
	err := row.Scan(&r.ID, &r.Code, &r.ProductID, &r.CurrentQuantity, &r.ActualQuantity,
		&r.Difference, &r.AdjustmentReason, &notes, &r.CreatedBy, &r.CreatedAt)
	r.Notes = notes.String
	r.CurrentQuantity = r.CurrentQuantity.Round(inventory.QuantityScale)
	r.ActualQuantity = r.ActualQuantity.Round(inventory.QuantityScale)
	r.Difference = r.Difference.Round(inventory.QuantityScale)
	return r, err
}
