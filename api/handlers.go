/*
handlers.go - HTTP API handlers for the inventory engine

PURPOSE:
  Exposes the stock-mutation engine and its read models via REST API.
  Handles HTTP request/response and JSON, and delegates every write to
  inventory.Engine.

ENDPOINTS:
  Transactions (/api/v1/transact):
    POST   /sales               Create sale (decrements stock)
    GET    /sales               List sales, newest first
    GET    /sales/{id}          Sale with details
    POST   /purchase            Create purchase (increments stock)
    GET    /purchase            List purchases
    GET    /purchase/{id}       Purchase with details
    POST   /stock-recon         Record a physical count (sets stock)
    GET    /stock-recon         List reconciliations
    GET    /stock-recon/{id}    One reconciliation

  Product master (/api/v1/master):
    POST   /products            Create product with opening stock
    GET    /products            List products
    GET    /products/low-stock  Products below threshold (?threshold=)
    GET    /products/{id}       One product

REQUEST FLOW:
  1. Resolve caller (auth.go middleware)
  2. Decode and validate body
  3. Call the engine (one unit of work)
  4. Serialize response envelope
  5. Map errors (errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-engine/config"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Engine is the write side used by the handlers.
type Engine interface {
	CreateSale(ctx context.Context, actor inventory.Actor, inv inventory.Invoice) (*inventory.Receipt, error)
	CreatePurchase(ctx context.Context, actor inventory.Actor, inv inventory.Invoice) (*inventory.Receipt, error)
	Reconcile(ctx context.Context, actor inventory.Actor, req inventory.ReconRequest) (*inventory.ReconResult, error)
	CreateProduct(ctx context.Context, actor inventory.Actor, p inventory.Product) (*inventory.Product, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine Engine
	Reader inventory.Reader
	Logger logrus.FieldLogger

	// LowStockThreshold is used when the request has no ?threshold=.
	LowStockThreshold decimal.Decimal
}

// NewHandler creates a new handler.
func NewHandler(engine Engine, reader inventory.Reader, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Engine:            engine,
		Reader:            reader,
		Logger:            logger,
		LowStockThreshold: decimal.NewFromInt(5),
	}
}

// =============================================================================
// SALES / PURCHASES
// =============================================================================

// CreateSale persists a sale and decrements stock for each line.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	h.createInvoice(w, r, inventory.KindSale)
}

// CreatePurchase persists a purchase and increments stock for each line.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	h.createInvoice(w, r, inventory.KindPurchase)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request, kind inventory.Kind) {
	actor, _ := ActorFrom(r.Context())
	op := "create_" + kind.String()

	var req InvoiceRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeEngineError(w, h.Logger, op, err)
		return
	}
	inv, err := req.toInvoice(kind)
	if err != nil {
		writeEngineError(w, h.Logger, op, err)
		return
	}

	var receipt *inventory.Receipt
	if kind == inventory.KindSale {
		receipt, err = h.Engine.CreateSale(r.Context(), actor, inv)
	} else {
		receipt, err = h.Engine.CreatePurchase(r.Context(), actor, inv)
	}
	if err != nil {
		writeEngineError(w, h.Logger, op, err)
		return
	}

	data := map[string]any{"code": receipt.Code, "details": toLineDTOs(receipt.Lines)}
	if kind == inventory.KindSale {
		data["salesId"] = receipt.ID
		writeSuccess(w, http.StatusCreated, "Sales record created successfully", data)
		return
	}
	data["purchaseId"] = receipt.ID
	writeSuccess(w, http.StatusCreated, "Purchase record created successfully", data)
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.listInvoices(w, r, inventory.KindSale)
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	h.listInvoices(w, r, inventory.KindPurchase)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request, kind inventory.Kind) {
	invoices, err := h.Reader.Invoices(r.Context(), kind, queryLimit(r))
	if err != nil {
		h.internalError(w, "list_"+kind.String(), err)
		return
	}
	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeSuccess(w, http.StatusOK, "", dtos)
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	h.getInvoice(w, r, inventory.KindSale)
}

func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	h.getInvoice(w, r, inventory.KindPurchase)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request, kind inventory.Kind) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.Reader.Invoice(r.Context(), kind, id)
	if err != nil {
		h.internalError(w, "get_"+kind.String(), err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, kind.String()+" not found")
		return
	}
	writeSuccess(w, http.StatusOK, "", toInvoiceDTO(*inv))
}

// =============================================================================
// STOCK RECONCILIATION
// =============================================================================

// CreateStockRecon records a physical count and overwrites stock with it.
func (h *Handler) CreateStockRecon(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req StockReconRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeEngineError(w, h.Logger, "reconcile", err)
		return
	}
	reconReq, err := req.toReconRequest()
	if err != nil {
		writeEngineError(w, h.Logger, "reconcile", err)
		return
	}

	result, err := h.Engine.Reconcile(r.Context(), actor, reconReq)
	if err != nil {
		writeEngineError(w, h.Logger, "reconcile", err)
		return
	}

	if req.Difference != nil && !req.Difference.Equal(result.Difference) {
		h.Logger.WithFields(logrus.Fields{
			"recon_code": result.Code,
			"sent":       req.Difference.String(),
			"computed":   result.Difference.String(),
		}).Info("client difference ignored")
	}

	writeSuccess(w, http.StatusCreated, "Stock reconciliation record created successfully", map[string]any{
		"reconId":         result.ID,
		"code":            result.Code,
		"currentQuantity": result.CurrentQuantity,
		"actualQuantity":  result.ActualQuantity,
		"stockDifference": result.Difference,
	})
}

func (h *Handler) ListStockRecons(w http.ResponseWriter, r *http.Request) {
	recons, err := h.Reader.Reconciliations(r.Context(), queryLimit(r))
	if err != nil {
		h.internalError(w, "list_stock_recon", err)
		return
	}
	dtos := make([]StockReconDTO, len(recons))
	for i, rec := range recons {
		dtos[i] = toStockReconDTO(rec)
	}
	writeSuccess(w, http.StatusOK, "", dtos)
}

func (h *Handler) GetStockRecon(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.Reader.Reconciliation(r.Context(), id)
	if err != nil {
		h.internalError(w, "get_stock_recon", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "stock reconciliation not found")
		return
	}
	writeSuccess(w, http.StatusOK, "", toStockReconDTO(*rec))
}

// =============================================================================
// PRODUCT MASTER
// =============================================================================

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req CreateProductRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeEngineError(w, h.Logger, "create_product", err)
		return
	}
	product, err := req.toProduct()
	if err != nil {
		writeEngineError(w, h.Logger, "create_product", err)
		return
	}

	created, err := h.Engine.CreateProduct(r.Context(), actor, product)
	if err != nil {
		writeEngineError(w, h.Logger, "create_product", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Product created successfully", toProductDTO(*created))
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Reader.Products(r.Context())
	if err != nil {
		h.internalError(w, "list_products", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", toProductDTOs(products))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Reader.Product(r.Context(), inventory.ProductID(id))
	if err != nil {
		h.internalError(w, "get_product", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, CodeProductNotFound, "product not found")
		return
	}
	writeSuccess(w, http.StatusOK, "", toProductDTO(*p))
}

// ListLowStock returns products with stock strictly below the threshold.
func (h *Handler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.LowStockThreshold
	if q := r.URL.Query().Get("threshold"); q != "" {
		t, err := decimal.NewFromString(q)
		if err != nil || t.IsNegative() {
			writeEngineError(w, h.Logger, "low_stock", &ValidationError{
				Fields: []FieldError{{Field: "threshold", Message: "must be a non-negative number"}},
			})
			return
		}
		threshold = t
	}

	products, err := h.Reader.LowStockProducts(r.Context(), threshold)
	if err != nil {
		h.internalError(w, "low_stock", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", toProductDTOs(products))
}

// =============================================================================
// HELPERS
// =============================================================================

func toProductDTOs(products []inventory.Product) []ProductDTO {
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	return dtos
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	config.LogError(h.Logger, "api", op, "read model query", nil, err)
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid id")
		return 0, false
	}
	return id, true
}

// queryLimit reads ?limit=, 0 meaning the store default.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
