/*
Package sqlite opens the inventory store on SQLite.

PURPOSE:
  Default backend for local runs and tests. All statements live in
  store/sqlstore; this package contributes the schema, the DSN and the
  driver error classification.

KEY TABLES:
  products:          stock rows in thousandths, CHECK (stock_quantity >= 0)
  sales, purchase:   invoice headers
  *_details:         line items, FK to header and product
  stock_recon:       physical counts
  sequences:         per-kind counters for generated codes

CONCURRENCY:
  Every unit of work starts with BEGIN IMMEDIATE (_txlock=immediate), so
  the write lock is taken before the first stock read. Two sales of the
  same last unit are serialized: the second one reads the committed stock
  of the first and fails its guard. busy_timeout lets the waiting side
  block instead of failing with SQLITE_BUSY. A lock still held when the
  timeout expires is reported as a retryable stock conflict.

EXACT STOCK:
  SQLite has no exact DECIMAL type; a DECIMAL column stores REAL values, and
  0.3 - 0.1 leaves 0.19999999999999998 behind. stock_quantity is therefore
  an INTEGER count of 10^-QuantityScale units.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/inventory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlstore: statements and transaction handling
  - store/mysql: MySQL backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/store/sqlstore"
)

// DSNParams are appended to every database path.
const DSNParams = "_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"

// Dialect is the SQLite flavour of sqlstore.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	Schema:            schema,
	UpsertSequence:    `INSERT INTO sequences (name, current_value) VALUES (?, 1) ON CONFLICT(name) DO UPDATE SET current_value = current_value + 1`,
	IsUniqueViolation: isUniqueConstraintError,
	IsCheckViolation:  isCheckConstraintError,
	IsLockConflict:    isLockError,
	StockScale:        inventory.QuantityScale,
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*sqlstore.Store, error) {
	return NewWithPool(context.Background(), dbPath, sqlstore.PoolConfig{})
}

// NewWithPool is New with explicit pool limits. An in-memory database is
// always limited to one connection, since every connection would open a
// separate empty database.
func NewWithPool(ctx context.Context, dbPath string, pool sqlstore.PoolConfig) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?"+DSNParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		pool.MaxOpenConns = 1
		pool.ConnMaxLifetime = 0
	}
	pool.Apply(db)

	store, err := sqlstore.Open(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isCheckConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
}

func isLockError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		product_id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_code TEXT NOT NULL UNIQUE,
		product_name TEXT NOT NULL,
		stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_stock ON products(stock_quantity)`,

	`CREATE TABLE IF NOT EXISTS sales (
		sales_id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		customer_id INTEGER NOT NULL,
		invoice_number TEXT NOT NULL UNIQUE,
		invoice_date DATE NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		gst_amount DECIMAL(15,2) NOT NULL,
		net_amount DECIMAL(15,2) NOT NULL,
		notes TEXT,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales_details (
		sales_detail_id INTEGER PRIMARY KEY AUTOINCREMENT,
		sales_id INTEGER NOT NULL REFERENCES sales(sales_id),
		line_no INTEGER NOT NULL,
		product_id INTEGER NOT NULL REFERENCES products(product_id),
		quantity DECIMAL(15,3) NOT NULL,
		unit_price DECIMAL(15,2) NOT NULL,
		gst_rate DECIMAL(5,2) NOT NULL,
		amount DECIMAL(15,2) NOT NULL,
		gst_amount DECIMAL(15,2) NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		UNIQUE(sales_id, line_no)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_details_product ON sales_details(product_id)`,

	`CREATE TABLE IF NOT EXISTS purchase (
		purchase_id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		supplier_id INTEGER NOT NULL,
		invoice_number TEXT NOT NULL,
		invoice_date DATE NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		gst_amount DECIMAL(15,2) NOT NULL,
		net_amount DECIMAL(15,2) NOT NULL,
		notes TEXT,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(supplier_id, invoice_number)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_details (
		purchase_detail_id INTEGER PRIMARY KEY AUTOINCREMENT,
		purchase_id INTEGER NOT NULL REFERENCES purchase(purchase_id),
		line_no INTEGER NOT NULL,
		product_id INTEGER NOT NULL REFERENCES products(product_id),
		quantity DECIMAL(15,3) NOT NULL,
		unit_price DECIMAL(15,2) NOT NULL,
		gst_rate DECIMAL(5,2) NOT NULL,
		amount DECIMAL(15,2) NOT NULL,
		gst_amount DECIMAL(15,2) NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		UNIQUE(purchase_id, line_no)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_details_product ON purchase_details(product_id)`,

	`CREATE TABLE IF NOT EXISTS stock_recon (
		recon_id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		product_id INTEGER NOT NULL REFERENCES products(product_id),
		current_quantity DECIMAL(15,3) NOT NULL,
		actual_quantity DECIMAL(15,3) NOT NULL,
		difference DECIMAL(15,3) NOT NULL,
		adjustment_reason TEXT NOT NULL,
		notes TEXT,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_recon_product ON stock_recon(product_id)`,

	`CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		current_value INTEGER NOT NULL
	)`,
}
