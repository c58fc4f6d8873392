package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCode(t *testing.T) {
	tests := []struct {
		kind Kind
		seq  int64
		want string
	}{
		{KindProduct, 1, "PROD00001"},
		{KindSale, 42, "SALE00042"},
		{KindPurchase, 99999, "PUR99999"},
		{KindReconciliation, 7, "RECON00007"},
		{KindSale, 123456, "SALE123456"}, // width is a minimum
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := FormatCode(tt.kind, tt.seq)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FormatCode(Kind("refund"), 1)
	assert.Error(t, err)
}

func TestComputeLine(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name               string
		qty, price, rate   string
		amount, gst, total string
	}{
		{"whole units", "2", "100", "18", "200", "36", "236"},
		{"no gst", "3", "9.99", "0", "29.97", "0", "29.97"},
		{"fractional quantity rounds to cents", "0.333", "10", "5", "3.33", "0.17", "3.5"},
		{"half cent rounds up", "1", "0.25", "10", "0.25", "0.03", "0.28"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ComputeLine(LineItem{
				Quantity:  d(tt.qty),
				UnitPrice: d(tt.price),
				GSTRate:   d(tt.rate),
				// caller-supplied derived values are overwritten
				TotalAmount: d("999"),
			})
			assert.True(t, d(tt.amount).Equal(l.Amount), "amount %s", l.Amount)
			assert.True(t, d(tt.gst).Equal(l.GSTAmount), "gst %s", l.GSTAmount)
			assert.True(t, d(tt.total).Equal(l.TotalAmount), "total %s", l.TotalAmount)
		})
	}
}

func TestLineTotals(t *testing.T) {
	d := decimal.RequireFromString
	lines := []LineItem{
		ComputeLine(LineItem{Quantity: d("2"), UnitPrice: d("100"), GSTRate: d("18")}),
		ComputeLine(LineItem{Quantity: d("10"), UnitPrice: d("5"), GSTRate: d("18")}),
	}

	amount, gst, total := LineTotals(lines)
	assert.True(t, d("250").Equal(amount))
	assert.True(t, d("45").Equal(gst))
	assert.True(t, d("295").Equal(total))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&ProductNotFoundError{ProductID: 1}, "product_not_found"},
		{&InsufficientStockError{}, "insufficient_stock"},
		{&StockConflictError{}, "stock_conflict"},
		{&LockConflictError{Err: errors.New("deadlock")}, "stock_conflict"},
		{&DuplicateInvoiceError{Kind: KindSale, InvoiceNumber: "X"}, "duplicate_invoice"},
		{&InvalidProductError{Field: "stock_quantity", Message: "must not be negative"}, "invalid_product"},
		{ErrBusy, "busy"},
		{fmt.Errorf("wait: %w", context.DeadlineExceeded), "canceled"},
		{&PersistenceError{Code: "c", Err: errors.New("driver")}, "persistence_failure"},
		{errors.New("anything"), "persistence_failure"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestPersistenceError_UnwrapsBoth(t *testing.T) {
	driver := errors.New("database is locked")
	err := fmt.Errorf("create_sale: %w", &PersistenceError{Op: "create_sale", Code: "abc", Err: driver})

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, driver)
	assert.NotContains(t, err.Error(), "locked")
}

func TestLockConflictError_RetryableConflict(t *testing.T) {
	driver := errors.New("Error 1213: Deadlock found when trying to get lock")
	err := fmt.Errorf("decrement: %w", &LockConflictError{Err: driver})

	assert.ErrorIs(t, err, ErrConcurrentStockConflict)
	assert.ErrorIs(t, err, driver)
	assert.True(t, IsRetryable(err))
	assert.True(t, IsClientError(err))
	assert.NotContains(t, err.Error(), "1213")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "lines_written", StateLinesWritten.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.False(t, StateStockApplied.Terminal())
	assert.True(t, StateRolledBack.Terminal())
}
