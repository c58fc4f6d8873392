/*
scheduler.go - Low-stock audit scheduler

PURPOSE:
  Periodically counts products whose stock is below the low-stock
  threshold, publishes the count as a gauge and logs the products found.
  Read-only: it never touches stock.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Stop waits for an in-flight check to finish

USAGE:
  auditor := NewLowStockAuditor(reader, recorder, logger)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - handlers.go: ListLowStock endpoint (on-demand listing)
  - metrics/metrics.go: low_stock_products gauge
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-engine/inventory"
)

// LowStockGauge receives the size of each audit.
type LowStockGauge interface {
	SetLowStock(n int)
}

// LowStockAuditor handles periodic low-stock checks.
type LowStockAuditor struct {
	Reader        inventory.Reader
	Gauge         LowStockGauge
	Logger        logrus.FieldLogger
	Threshold     decimal.Decimal
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewLowStockAuditor creates an auditor with a threshold of 5 and a
// five-minute interval.
func NewLowStockAuditor(reader inventory.Reader, gauge LowStockGauge, logger logrus.FieldLogger) *LowStockAuditor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LowStockAuditor{
		Reader:        reader,
		Gauge:         gauge,
		Logger:        logger,
		Threshold:     decimal.NewFromInt(5),
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
	}
}

// Start begins the auditor.
func (a *LowStockAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled || a.CheckInterval <= 0 {
		a.Logger.Info("low-stock auditor disabled")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.CheckInterval)
	a.stop = make(chan struct{})
	a.wg.Add(1)

	go a.run()

	a.Logger.WithFields(logrus.Fields{
		"interval":  a.CheckInterval.String(),
		"threshold": a.Threshold.String(),
	}).Info("low-stock auditor started")
}

// Stop stops the auditor.
func (a *LowStockAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker != nil {
		a.ticker.Stop()
		close(a.stop)
		a.wg.Wait()
		a.ticker = nil
		a.Logger.Info("low-stock auditor stopped")
	}
}

func (a *LowStockAuditor) run() {
	defer a.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-a.stop
		cancel()
	}()

	// Run immediately on start
	a.Check(ctx)

	for {
		select {
		case <-a.ticker.C:
			a.Check(ctx)
		case <-a.stop:
			return
		}
	}
}

// Check runs one audit and returns the low-stock products.
func (a *LowStockAuditor) Check(ctx context.Context) ([]inventory.Product, error) {
	products, err := a.Reader.LowStockProducts(ctx, a.Threshold)
	if err != nil {
		a.Logger.WithError(err).Error("low-stock audit failed")
		return nil, err
	}

	if a.Gauge != nil {
		a.Gauge.SetLowStock(len(products))
	}
	for _, p := range products {
		a.Logger.WithFields(logrus.Fields{
			"product_id":     p.ID,
			"product_code":   p.Code,
			"stock_quantity": p.StockQuantity.String(),
		}).Warn("product below low-stock threshold")
	}
	a.Logger.WithField("count", len(products)).Debug("low-stock audit complete")
	return products, nil
}
