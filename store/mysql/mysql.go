/*
Package mysql opens the inventory store on MySQL (InnoDB).

CONCURRENCY:
  Units of work run at READ COMMITTED. Stock reads inside a unit of work
  use SELECT ... FOR UPDATE, so the row stays locked from the guard check
  to the commit. The guarded decrement is kept as a second line of
  defence. Two sales locking the same products in opposite order can
  deadlock; InnoDB aborts one of them, and that abort (like a lock wait
  timeout) is reported as a retryable stock conflict.

DSN:
  ParseTime and ClientFoundRows are always forced on. ClientFoundRows makes
  RowsAffected count matched rows, so an update that leaves the value
  unchanged (reconciliation to the same count) still reports the product
  as found.
*/
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/warp/inventory-engine/store/sqlstore"
)

// MySQL server error numbers.
const (
	erDupEntry                = 1062
	erLockWaitTimeout         = 1205
	erLockDeadlock            = 1213
	erCheckConstraintViolated = 3819
)

var Dialect = sqlstore.Dialect{
	Name:              "mysql",
	Schema:            schema,
	LockClause:        " FOR UPDATE",
	UpsertSequence:    `INSERT INTO sequences (name, current_value) VALUES (?, 1) ON DUPLICATE KEY UPDATE current_value = current_value + 1`,
	TxOptions:         &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	IsUniqueViolation: isDuplicateEntry,
	IsCheckViolation:  isCheckViolated,
	IsLockConflict:    isLockConflict,
}

// Config describes one MySQL connection target.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// DSN renders c as a driver DSN. A host starting with "/" is treated as a
// unix socket path.
func (c Config) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.DBName = c.Database
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", c.Host, c.Port)
	if len(c.Host) > 0 && c.Host[0] == '/' {
		cfg.Net = "unix"
		cfg.Addr = c.Host
	}
	return cfg.FormatDSN()
}

// New opens dsn with pool limits applied and migrates the schema.
func New(ctx context.Context, dsn string, pool sqlstore.PoolConfig) (*sqlstore.Store, error) {
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pool.Apply(db)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	store, err := sqlstore.Open(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erDupEntry
}

func isCheckViolated(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erCheckConstraintViolated
}

func isLockConflict(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && (myErr.Number == erLockDeadlock || myErr.Number == erLockWaitTimeout)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		product_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_code VARCHAR(20) NOT NULL UNIQUE,
		product_name VARCHAR(255) NOT NULL,
		stock_quantity DECIMAL(15,3) NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		CONSTRAINT chk_products_stock CHECK (stock_quantity >= 0),
		INDEX idx_products_stock (stock_quantity)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS sales (
		sales_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(20) NOT NULL UNIQUE,
		customer_id BIGINT NOT NULL,
		invoice_number VARCHAR(100) NOT NULL UNIQUE,
		invoice_date DATE NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		gst_amount DECIMAL(15,2) NOT NULL,
		net_amount DECIMAL(15,2) NOT NULL,
		notes TEXT,
		created_by VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS sales_details (
		sales_detail_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		sales_id BIGINT NOT NULL,
		line_no INT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity DECIMAL(15,3) NOT NULL,
		unit_price DECIMAL(15,2) NOT NULL,
		gst_rate DECIMAL(5,2) NOT NULL,
		amount DECIMAL(15,2) NOT NULL,
		gst_amount DECIMAL(15,2) NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		UNIQUE KEY uq_sales_line (sales_id, line_no),
		FOREIGN KEY (sales_id) REFERENCES sales(sales_id),
		FOREIGN KEY (product_id) REFERENCES products(product_id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS purchase (
		purchase_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(20) NOT NULL UNIQUE,
		supplier_id BIGINT NOT NULL,
		invoice_number VARCHAR(100) NOT NULL,
		invoice_date DATE NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		gst_amount DECIMAL(15,2) NOT NULL,
		net_amount DECIMAL(15,2) NOT NULL,
		notes TEXT,
		created_by VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_purchase_supplier_invoice (supplier_id, invoice_number)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS purchase_details (
		purchase_detail_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		purchase_id BIGINT NOT NULL,
		line_no INT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity DECIMAL(15,3) NOT NULL,
		unit_price DECIMAL(15,2) NOT NULL,
		gst_rate DECIMAL(5,2) NOT NULL,
		amount DECIMAL(15,2) NOT NULL,
		gst_amount DECIMAL(15,2) NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		UNIQUE KEY uq_purchase_line (purchase_id, line_no),
		FOREIGN KEY (purchase_id) REFERENCES purchase(purchase_id),
		FOREIGN KEY (product_id) REFERENCES products(product_id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS stock_recon (
		recon_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(20) NOT NULL UNIQUE,
		product_id BIGINT NOT NULL,
		current_quantity DECIMAL(15,3) NOT NULL,
		actual_quantity DECIMAL(15,3) NOT NULL,
		difference DECIMAL(15,3) NOT NULL,
		adjustment_reason VARCHAR(255) NOT NULL,
		notes TEXT,
		created_by VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products(product_id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS sequences (
		name VARCHAR(32) PRIMARY KEY,
		current_value BIGINT NOT NULL
	) ENGINE=InnoDB`,
}
