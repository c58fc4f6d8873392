package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_PORT", "DB_DRIVER", "DB_PATH", "DB_MAX_OPEN_CONNS", "UOW_MAX_CONCURRENT",
		"UOW_ACQUIRE_TIMEOUT_MS", "LOG_LEVEL", "CORS_ORIGINS", "LOW_STOCK_THRESHOLD",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "inventory.db", cfg.DBPath)
	assert.Equal(t, 10, cfg.Pool.MaxOpenConns)
	assert.Equal(t, int64(10), cfg.UnitOfWork.MaxConcurrent)
	assert.Equal(t, 5*time.Second, cfg.UnitOfWork.AcquireTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.True(t, cfg.LowStockThreshold.Equal(decimal.NewFromInt(5)))
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_NAME", "inventory")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("UOW_MAX_CONCURRENT", "")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LOW_STOCK_THRESHOLD", "2.5")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
	assert.Equal(t, int64(25), cfg.UnitOfWork.MaxConcurrent, "slots follow the pool size")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "2.5", cfg.LowStockThreshold.String())
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "postgres")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("mysql without database", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")
		t.Setenv("DB_NAME", "")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("bad threshold", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "sqlite")
		t.Setenv("LOW_STOCK_THRESHOLD", "lots")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}

func TestIntFromEnv_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("DB_MAX_IDLE_CONNS", "many")
	assert.Equal(t, 5, intFromEnv("DB_MAX_IDLE_CONNS", 5))
}

func TestLogError_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	LogError(logger, "api", "createSale", "insert header", map[string]string{"invoice": "INV-1"}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "api", entry["module"])
	assert.Equal(t, "createSale", entry["funcName"])
	assert.NotNil(t, entry["data"])
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	logger := NewLogger("chatty", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
