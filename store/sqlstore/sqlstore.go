/*
Package sqlstore implements the inventory storage interfaces on database/sql.

PURPOSE:
  One implementation of the stock ledger, document writes and read models,
  shared by the SQLite and MySQL backends. A Dialect supplies what differs:
  schema DDL, the row-lock clause, the sequence upsert, transaction options
  and driver error classification. Both drivers use "?" placeholders.

STOCK MUTATION:
  Stock only changes through three statements:
    - guarded decrement:  SET stock_quantity = stock_quantity - ?
                          WHERE product_id = ? AND stock_quantity >= ?
    - increment:          SET stock_quantity = stock_quantity + ?
    - absolute set:       SET stock_quantity = ?   (reconciliation)
  A zero RowsAffected is reported as false, never as an error. The
  products table also carries CHECK (stock_quantity >= 0).

  A dialect with a positive StockScale keeps stock_quantity as an integer
  count of 10^-StockScale units, so engines without an exact DECIMAL type
  (SQLite) add, subtract and compare stock without float drift. Values are
  converted at the statement boundary and callers only see decimals.

UNITS OF WORK:
  WithTx begins a transaction with the dialect's options, hands fn a store
  bound to that *sql.Tx, commits on nil and rolls back otherwise (including
  panics and context cancellation). Commit or rollback returns the
  connection to the pool.

SEE ALSO:
  - store/sqlite: SQLite dialect (default)
  - store/mysql: MySQL dialect
  - inventory/store.go: interface definitions
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/inventory-engine/inventory"
)

// Dialect holds what differs between database engines.
type Dialect struct {
	Name string

	// Schema is executed statement by statement on Open.
	Schema []string

	// LockClause is appended to stock reads inside a unit of work,
	// e.g. " FOR UPDATE". Empty when the engine locks at begin.
	LockClause string

	// UpsertSequence increments the counter named by its single parameter,
	// creating it at 1.
	UpsertSequence string

	// TxOptions are passed to BeginTx. Nil means driver default.
	TxOptions *sql.TxOptions

	// IsUniqueViolation reports duplicate-key errors.
	IsUniqueViolation func(error) bool

	// IsCheckViolation reports CHECK constraint failures. A stock update
	// rejected by CHECK (stock_quantity >= 0) counts as not applied.
	IsCheckViolation func(error) bool

	// IsLockConflict reports a unit of work aborted over a lock held by a
	// concurrent one: deadlock, lock wait timeout or a busy database.
	IsLockConflict func(error) bool

	// StockScale, when positive, stores stock_quantity as an integer
	// number of 10^-StockScale units. Zero keeps the native DECIMAL column.
	StockScale int32
}

// Store implements inventory.TxStore and inventory.Reader.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open wraps db and migrates the schema.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate %s database: %w", dialect.Name, err)
	}
	return s, nil
}

// DB exposes the pool, e.g. for pool statistics.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// PoolConfig tunes the database/sql connection pool. Zero values keep the
// driver default.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Apply sets the pool limits on db.
func (c PoolConfig) Apply(db *sql.DB) {
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store inventory.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return s.lockConflict(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return s.lockConflict(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return s.lockConflict(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// lockConflict turns a lock error raised by the engine into a retryable
// stock conflict. Other errors pass through.
func (s *Store) lockConflict(err error) error {
	if s.dialect.IsLockConflict != nil && s.dialect.IsLockConflict(err) {
		return &inventory.LockConflictError{Err: err}
	}
	return err
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

// =============================================================================
// STOCK LEDGER (inventory.StockLedger interface)
// =============================================================================

func (ts *txStore) GetProduct(ctx context.Context, id inventory.ProductID) (*inventory.ProductSnapshot, error) {
	query := `SELECT product_id, product_name, stock_quantity FROM products WHERE product_id = ?` +
		ts.parent.dialect.LockClause

	var p inventory.ProductSnapshot
	err := ts.tx.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.StockQuantity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.StockQuantity = ts.parent.stockValue(p.StockQuantity)
	return &p, nil
}

func (ts *txStore) DecrementStock(ctx context.Context, id inventory.ProductID, qty decimal.Decimal) (bool, error) {
	ok, err := exec1(ctx, ts.tx, `
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = ?
		WHERE product_id = ? AND stock_quantity >= ?
	`, ts.parent.stockArg(qty), now(), id, ts.parent.stockArg(qty))
	if err != nil && ts.parent.isCheckViolation(err) {
		return false, nil
	}
	return ok, err
}

func (ts *txStore) IncrementStock(ctx context.Context, id inventory.ProductID, qty decimal.Decimal) (bool, error) {
	return exec1(ctx, ts.tx, `
		UPDATE products
		SET stock_quantity = stock_quantity + ?, updated_at = ?
		WHERE product_id = ?
	`, ts.parent.stockArg(qty), now(), id)
}

func (ts *txStore) SetStock(ctx context.Context, id inventory.ProductID, qty decimal.Decimal) (bool, error) {
	return exec1(ctx, ts.tx, `
		UPDATE products
		SET stock_quantity = ?, updated_at = ?
		WHERE product_id = ?
	`, ts.parent.stockArg(qty), now(), id)
}

// exec1 runs a single-row update and reports whether a row matched.
func exec1(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// =============================================================================
// DOCUMENT STORE (inventory.DocumentStore interface)
// =============================================================================

func (ts *txStore) NextSequence(ctx context.Context, kind inventory.Kind) (int64, error) {
	if _, err := ts.tx.ExecContext(ctx, ts.parent.dialect.UpsertSequence, string(kind)); err != nil {
		return 0, err
	}
	var value int64
	err := ts.tx.QueryRowContext(ctx, `SELECT current_value FROM sequences WHERE name = ?`, string(kind)).Scan(&value)
	return value, err
}

func (ts *txStore) InsertInvoice(ctx context.Context, inv *inventory.Invoice) (int64, error) {
	t, err := tablesFor(inv.Kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(code, %s, invoice_number, invoice_date, total_amount, gst_amount, net_amount,
		 notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.header, t.counterparty)

	res, err := ts.tx.ExecContext(ctx, query,
		inv.Code,
		inv.CounterpartyID,
		inv.InvoiceNumber,
		inv.InvoiceDate,
		inv.TotalAmount,
		inv.GSTAmount,
		inv.NetAmount,
		nullString(inv.Notes),
		inv.CreatedBy,
		inv.CreatedAt,
	)
	if err != nil {
		if ts.parent.isUniqueViolation(err) {
			return 0, &inventory.DuplicateInvoiceError{Kind: inv.Kind, InvoiceNumber: inv.InvoiceNumber}
		}
		return 0, fmt.Errorf("failed to insert %s: %w", t.header, err)
	}
	return res.LastInsertId()
}

func (ts *txStore) InsertLine(ctx context.Context, kind inventory.Kind, invoiceID int64, line *inventory.LineItem) (int64, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(%s, line_no, product_id, quantity, unit_price, gst_rate, amount, gst_amount, total_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.detail, t.id)

	res, err := ts.tx.ExecContext(ctx, query,
		invoiceID,
		line.LineNo,
		line.ProductID,
		line.Quantity,
		line.UnitPrice,
		line.GSTRate,
		line.Amount,
		line.GSTAmount,
		line.TotalAmount,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (ts *txStore) InsertReconciliation(ctx context.Context, r *inventory.Reconciliation) (int64, error) {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO stock_recon
		(code, product_id, current_quantity, actual_quantity, difference,
		 adjustment_reason, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Code,
		r.ProductID,
		r.CurrentQuantity,
		r.ActualQuantity,
		r.Difference,
		r.AdjustmentReason,
		nullString(r.Notes),
		r.CreatedBy,
		r.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (ts *txStore) InsertProduct(ctx context.Context, p *inventory.Product) (inventory.ProductID, error) {
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO products (product_code, product_name, stock_quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.Code, p.Name, ts.parent.stockArg(p.StockQuantity), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return inventory.ProductID(id), err
}

// =============================================================================
// TABLES PER KIND
// =============================================================================

type documentTables struct {
	header       string
	detail       string
	id           string
	detailID     string
	counterparty string
}

var invoiceTables = map[inventory.Kind]documentTables{
	inventory.KindSale:     {"sales", "sales_details", "sales_id", "sales_detail_id", "customer_id"},
	inventory.KindPurchase: {"purchase", "purchase_details", "purchase_id", "purchase_detail_id", "supplier_id"},
}

func tablesFor(kind inventory.Kind) (documentTables, error) {
	t, ok := invoiceTables[kind]
	if !ok {
		return documentTables{}, fmt.Errorf("no tables for kind %q", kind)
	}
	return t, nil
}

// Helper functions

func (s *Store) isUniqueViolation(err error) bool {
	return s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err)
}

func (s *Store) isCheckViolation(err error) bool {
	return s.dialect.IsCheckViolation != nil && s.dialect.IsCheckViolation(err)
}

// stockArg converts a quantity to the stock_quantity column representation.
func (s *Store) stockArg(qty decimal.Decimal) any {
	if s.dialect.StockScale <= 0 {
		return qty
	}
	return qty.Shift(s.dialect.StockScale).Round(0).IntPart()
}

// stockThreshold is stockArg for a strict upper bound: stock < threshold
// holds exactly when the stored count is below the returned value.
func (s *Store) stockThreshold(threshold decimal.Decimal) any {
	if s.dialect.StockScale <= 0 {
		return threshold
	}
	return threshold.Shift(s.dialect.StockScale).Ceil().IntPart()
}

// stockValue converts a scanned stock_quantity back to a quantity.
func (s *Store) stockValue(v decimal.Decimal) decimal.Decimal {
	if s.dialect.StockScale > 0 {
		v = v.Shift(-s.dialect.StockScale)
	}
	return v.Round(inventory.QuantityScale)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func now() time.Time {
	return time.Now().UTC()
}
