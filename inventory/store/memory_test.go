package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-engine/inventory"
)

func seedProducts(t *testing.T, m *Memory, stocks ...string) {
	t.Helper()
	err := m.WithTx(context.Background(), func(s inventory.Store) error {
		for i, stock := range stocks {
			_, err := s.InsertProduct(context.Background(), &inventory.Product{
				Code:          "PROD0000" + string(rune('1'+i)),
				Name:          string(rune('A' + i)),
				StockQuantity: decimal.RequireFromString(stock),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLowStockProducts_StrictlyBelowThreshold(t *testing.T) {
	m := NewMemory()
	seedProducts(t, m, "0", "4.999", "5", "20")

	low, err := m.LowStockProducts(context.Background(), decimal.NewFromInt(5))
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "A", low[0].Name)
	assert.Equal(t, "B", low[1].Name)
}

func TestLowStockProducts_ReturnsReadError(t *testing.T) {
	m := NewMemory()
	seedProducts(t, m, "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	low, err := m.LowStockProducts(ctx, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, low)
}
