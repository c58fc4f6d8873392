/*
Package config loads runtime settings from the environment.

SOURCES (later wins):
  1. built-in defaults
  2. .env in the working directory, if present (godotenv)
  3. process environment
  4. command-line flags, applied by cmd/server

VARIABLES:
  HTTP_PORT                      8080
  DB_DRIVER                      sqlite | mysql
  DB_PATH                        inventory.db (sqlite)
  DB_HOST, DB_PORT, DB_USER,
  DB_PASSWORD, DB_NAME           mysql target
  DB_MAX_OPEN_CONNS              10
  DB_MAX_IDLE_CONNS              5
  DB_CONN_MAX_LIFETIME_SECONDS   300
  UOW_MAX_CONCURRENT             DB_MAX_OPEN_CONNS
  UOW_ACQUIRE_TIMEOUT_MS         5000
  LOG_LEVEL                      info
  CORS_ORIGINS                   http://localhost:5173 (comma separated)
  LOW_STOCK_THRESHOLD            5
  LOW_STOCK_INTERVAL_SECONDS     300 (0 disables the audit)
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/store/mysql"
	"github.com/warp/inventory-engine/store/sqlstore"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	HTTPPort string

	DBDriver string
	DBPath   string
	MySQL    mysql.Config
	Pool     sqlstore.PoolConfig

	UnitOfWork inventory.CoordinatorConfig

	LogLevel    string
	CORSOrigins []string

	LowStockThreshold decimal.Decimal
	LowStockInterval  time.Duration
}

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	// a missing .env file is normal outside local development
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (Config, error) {
	maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 10)

	cfg := Config{
		HTTPPort: stringFromEnv("HTTP_PORT", "8080"),
		DBDriver: strings.ToLower(stringFromEnv("DB_DRIVER", DriverSQLite)),
		DBPath:   stringFromEnv("DB_PATH", "inventory.db"),
		MySQL: mysql.Config{
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Host:     stringFromEnv("DB_HOST", "127.0.0.1"),
			Port:     stringFromEnv("DB_PORT", "3306"),
			Database: os.Getenv("DB_NAME"),
		},
		Pool: sqlstore.PoolConfig{
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    intFromEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		},
		UnitOfWork: inventory.CoordinatorConfig{
			MaxConcurrent:  int64(intFromEnv("UOW_MAX_CONCURRENT", maxOpen)),
			AcquireTimeout: time.Duration(intFromEnv("UOW_ACQUIRE_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
		LogLevel:         stringFromEnv("LOG_LEVEL", "info"),
		CORSOrigins:      listFromEnv("CORS_ORIGINS", []string{"http://localhost:5173"}),
		LowStockInterval: time.Duration(intFromEnv("LOW_STOCK_INTERVAL_SECONDS", 300)) * time.Second,
	}

	threshold, err := decimal.NewFromString(stringFromEnv("LOW_STOCK_THRESHOLD", "5"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOW_STOCK_THRESHOLD: %w", err)
	}
	cfg.LowStockThreshold = threshold

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for driver %q", c.DBDriver)
		}
	case DriverMySQL:
		if c.MySQL.Database == "" {
			return fmt.Errorf("DB_NAME is required for driver %q", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.UnitOfWork.MaxConcurrent <= 0 {
		return fmt.Errorf("UOW_MAX_CONCURRENT must be positive, got %d", c.UnitOfWork.MaxConcurrent)
	}
	if c.LowStockThreshold.IsNegative() {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.HTTPPort
}

func stringFromEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func listFromEnv(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
