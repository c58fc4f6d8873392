package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/inventory/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeGauge struct {
	mu     sync.Mutex
	values []int
}

func (g *fakeGauge) SetLowStock(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = append(g.values, n)
}

func (g *fakeGauge) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.values)
}

func newTestAuditor(t *testing.T, stocks ...string) (*LowStockAuditor, *fakeGauge, *test.Hook) {
	t.Helper()
	mem := store.NewMemory()
	logger, hook := test.NewNullLogger()
	engine := inventory.NewEngine(inventory.NewCoordinator(mem, inventory.DefaultCoordinatorConfig(), logger, nil))

	for i, s := range stocks {
		_, err := engine.CreateProduct(context.Background(), inventory.Actor{ID: "seed"}, inventory.Product{
			Name:          string(rune('A' + i)),
			StockQuantity: decimal.RequireFromString(s),
		})
		require.NoError(t, err)
	}
	hook.Reset()

	gauge := &fakeGauge{}
	return NewLowStockAuditor(mem, gauge, logger), gauge, hook
}

// =============================================================================
// AUDIT
// =============================================================================

func TestLowStockAuditor_Check(t *testing.T) {
	// GIVEN: Stocks 0, 4.999, 5 and 20 with the default threshold of 5
	// WHEN: Running one audit
	// THEN: Two products reported, gauge set to 2, one warning each

	auditor, gauge, hook := newTestAuditor(t, "0", "4.999", "5", "20")

	products, err := auditor.Check(context.Background())
	require.NoError(t, err)

	assert.Len(t, products, 2)
	assert.Equal(t, []int{2}, gauge.values)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestLowStockAuditor_CustomThreshold(t *testing.T) {
	auditor, gauge, _ := newTestAuditor(t, "0", "10", "50")
	auditor.Threshold = decimal.NewFromInt(11)

	products, err := auditor.Check(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, []int{2}, gauge.values)
}

func TestLowStockAuditor_StartStop(t *testing.T) {
	auditor, gauge, _ := newTestAuditor(t, "1")
	auditor.CheckInterval = 10 * time.Millisecond

	auditor.Start()
	auditor.Start() // second Start is a no-op

	assert.Eventually(t, func() bool { return gauge.calls() >= 2 }, time.Second, 5*time.Millisecond)

	auditor.Stop()
	n := gauge.calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, gauge.calls(), "no audits after Stop")

	auditor.Stop() // idempotent
}

func TestLowStockAuditor_Disabled(t *testing.T) {
	auditor, gauge, _ := newTestAuditor(t, "1")
	auditor.Enabled = false
	auditor.CheckInterval = 5 * time.Millisecond

	auditor.Start()
	time.Sleep(20 * time.Millisecond)
	auditor.Stop()

	assert.Zero(t, gauge.calls())
}
