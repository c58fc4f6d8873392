/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication and converts them to
  and from inventory types. Field names follow the original frontend
  contract (snake_case, "details" for line items).

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types returned to clients

VALIDATION:
  Struct tags are checked by go-playground/validator (validate.go).
  Checks that depend on the document kind or on decimal scale are done
  in the to* conversion functions.

NUMBERS:
  Quantities and amounts are decimal.Decimal. Requests may send them as
  JSON numbers or strings; responses always carry strings.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Validator setup
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Response is the envelope of every API response.
type Response struct {
	Status      string       `json:"status"`
	Message     string       `json:"message,omitempty"`
	Data        any          `json:"data,omitempty"`
	Code        string       `json:"code,omitempty"`
	FailureCode string       `json:"failure_code,omitempty"`
	Errors      []FieldError `json:"errors,omitempty"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// LineRequest is one entry of "details".
type LineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	GSTRate   decimal.Decimal `json:"gst_rate" validate:"gte=0,lte=100"`
}

// InvoiceRequest is the body of POST /transact/sales and /transact/purchase.
// Sales name a customer_id, purchases a supplier_id.
type InvoiceRequest struct {
	CustomerID    int64           `json:"customer_id,omitempty"`
	SupplierID    int64           `json:"supplier_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number" validate:"required,max=100"`
	InvoiceDate   string          `json:"invoice_date" validate:"required"`
	TotalAmount   decimal.Decimal `json:"total_amount" validate:"gte=0"`
	GSTAmount     decimal.Decimal `json:"gst_amount" validate:"gte=0"`
	NetAmount     decimal.Decimal `json:"net_amount" validate:"gte=0"`
	Notes         string          `json:"notes,omitempty" validate:"max=1000"`
	Details       []LineRequest   `json:"details" validate:"required,min=1,dive"`
}

// StockReconRequest is the body of POST /transact/stock-recon.
// current_quantity and difference are accepted but not trusted; both are
// derived from the stock row inside the unit of work.
type StockReconRequest struct {
	ProductID        int64            `json:"product_id" validate:"required,gt=0"`
	CurrentQuantity  *decimal.Decimal `json:"current_quantity,omitempty"`
	ActualQuantity   *decimal.Decimal `json:"actual_quantity" validate:"required,gte=0"`
	Difference       *decimal.Decimal `json:"difference,omitempty"`
	AdjustmentReason string           `json:"adjustment_reason" validate:"required,max=500"`
	Notes            string           `json:"notes,omitempty" validate:"max=1000"`
}

// CreateProductRequest is the body of POST /master/products.
type CreateProductRequest struct {
	ProductName   string          `json:"product_name" validate:"required,max=255"`
	StockQuantity decimal.Decimal `json:"stock_quantity" validate:"gte=0"`
}

// toInvoice applies the kind-specific checks and builds the engine input.
func (req *InvoiceRequest) toInvoice(kind inventory.Kind) (inventory.Invoice, error) {
	verr := &ValidationError{}

	inv := inventory.Invoice{
		Kind:          kind,
		InvoiceNumber: req.InvoiceNumber,
		TotalAmount:   req.TotalAmount,
		GSTAmount:     req.GSTAmount,
		NetAmount:     req.NetAmount,
		Notes:         req.Notes,
	}

	switch kind {
	case inventory.KindSale:
		if req.CustomerID <= 0 {
			verr.add("customer_id", "is required")
		}
		inv.CounterpartyID = req.CustomerID
	case inventory.KindPurchase:
		if req.SupplierID <= 0 {
			verr.add("supplier_id", "is required")
		}
		inv.CounterpartyID = req.SupplierID
	}

	date, err := parseDate(req.InvoiceDate)
	if err != nil {
		verr.add("invoice_date", "must be YYYY-MM-DD or RFC 3339")
	}
	inv.InvoiceDate = date

	checkScale(verr, "total_amount", req.TotalAmount, inventory.MoneyScale)
	checkScale(verr, "gst_amount", req.GSTAmount, inventory.MoneyScale)
	checkScale(verr, "net_amount", req.NetAmount, inventory.MoneyScale)

	inv.Lines = make([]inventory.LineItem, len(req.Details))
	for i, d := range req.Details {
		prefix := fmt.Sprintf("details[%d].", i)
		checkScale(verr, prefix+"quantity", d.Quantity, inventory.QuantityScale)
		checkScale(verr, prefix+"unit_price", d.UnitPrice, inventory.MoneyScale)
		checkScale(verr, prefix+"gst_rate", d.GSTRate, inventory.MoneyScale)
		inv.Lines[i] = inventory.LineItem{
			ProductID: inventory.ProductID(d.ProductID),
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
			GSTRate:   d.GSTRate,
		}
	}

	return inv, verr.orNil()
}

func (req *StockReconRequest) toReconRequest() (inventory.ReconRequest, error) {
	verr := &ValidationError{}
	checkScale(verr, "actual_quantity", *req.ActualQuantity, inventory.QuantityScale)

	return inventory.ReconRequest{
		ProductID:        inventory.ProductID(req.ProductID),
		ActualQuantity:   *req.ActualQuantity,
		Difference:       req.Difference,
		AdjustmentReason: req.AdjustmentReason,
		Notes:            req.Notes,
	}, verr.orNil()
}

func (req *CreateProductRequest) toProduct() (inventory.Product, error) {
	verr := &ValidationError{}
	checkScale(verr, "stock_quantity", req.StockQuantity, inventory.QuantityScale)
	return inventory.Product{Name: req.ProductName, StockQuantity: req.StockQuantity}, verr.orNil()
}

// =============================================================================
// RESPONSES
// =============================================================================

type ProductDTO struct {
	ProductID     int64           `json:"product_id"`
	ProductCode   string          `json:"product_code"`
	ProductName   string          `json:"product_name"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type LineDTO struct {
	DetailID    int64           `json:"detail_id"`
	LineNo      int             `json:"line_no"`
	ProductID   int64           `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	GSTRate     decimal.Decimal `json:"gst_rate"`
	Amount      decimal.Decimal `json:"amount"`
	GSTAmount   decimal.Decimal `json:"gst_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// InvoiceDTO is a sale or purchase. Details is omitted in list responses.
type InvoiceDTO struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	CustomerID    int64           `json:"customer_id,omitempty"`
	SupplierID    int64           `json:"supplier_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     string          `json:"created_at"`
	Details       []LineDTO       `json:"details,omitempty"`
}

type StockReconDTO struct {
	ReconID          int64           `json:"recon_id"`
	Code             string          `json:"code"`
	ProductID        int64           `json:"product_id"`
	CurrentQuantity  decimal.Decimal `json:"current_quantity"`
	ActualQuantity   decimal.Decimal `json:"actual_quantity"`
	Difference       decimal.Decimal `json:"difference"`
	AdjustmentReason string          `json:"adjustment_reason"`
	Notes            string          `json:"notes,omitempty"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        string          `json:"created_at"`
}

// StockShortageDTO is the data of insufficient_stock and stock_conflict errors.
type StockShortageDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Available   decimal.Decimal `json:"available"`
	Required    decimal.Decimal `json:"required"`
}

func toProductDTO(p inventory.Product) ProductDTO {
	return ProductDTO{
		ProductID:     int64(p.ID),
		ProductCode:   p.Code,
		ProductName:   p.Name,
		StockQuantity: p.StockQuantity,
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
}

func toLineDTOs(lines []inventory.LineItem) []LineDTO {
	if len(lines) == 0 {
		return nil
	}
	dtos := make([]LineDTO, len(lines))
	for i, l := range lines {
		dtos[i] = LineDTO{
			DetailID:    l.ID,
			LineNo:      l.LineNo,
			ProductID:   int64(l.ProductID),
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			GSTRate:     l.GSTRate,
			Amount:      l.Amount,
			GSTAmount:   l.GSTAmount,
			TotalAmount: l.TotalAmount,
		}
	}
	return dtos
}

func toInvoiceDTO(inv inventory.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:            inv.ID,
		Code:          inv.Code,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   inv.InvoiceDate.Format("2006-01-02"),
		TotalAmount:   inv.TotalAmount,
		GSTAmount:     inv.GSTAmount,
		NetAmount:     inv.NetAmount,
		Notes:         inv.Notes,
		CreatedBy:     inv.CreatedBy,
		CreatedAt:     formatTime(inv.CreatedAt),
		Details:       toLineDTOs(inv.Lines),
	}
	if inv.Kind == inventory.KindPurchase {
		dto.SupplierID = inv.CounterpartyID
	} else {
		dto.CustomerID = inv.CounterpartyID
	}
	return dto
}

func toStockReconDTO(r inventory.Reconciliation) StockReconDTO {
	return StockReconDTO{
		ReconID:          r.ID,
		Code:             r.Code,
		ProductID:        int64(r.ProductID),
		CurrentQuantity:  r.CurrentQuantity,
		ActualQuantity:   r.ActualQuantity,
		Difference:       r.Difference,
		AdjustmentReason: r.AdjustmentReason,
		Notes:            r.Notes,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        formatTime(r.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
