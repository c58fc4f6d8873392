/*
handlers_test.go - HTTP tests for the inventory API

Tests for:
- Identity and role checks
- Request validation (400 with per-field errors)
- Sale, purchase and reconciliation responses
- Error mapping of engine rejections
- Read endpoints
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-engine/api"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/inventory/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	store  *store.Memory
}

type envelope struct {
	Status      string           `json:"status"`
	Message     string           `json:"message"`
	Code        string           `json:"code"`
	FailureCode string           `json:"failure_code"`
	Errors      []api.FieldError `json:"errors"`
	Data        json.RawMessage  `json:"data"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	logger, _ := test.NewNullLogger()

	engine := inventory.NewEngine(inventory.NewCoordinator(mem, inventory.DefaultCoordinatorConfig(), logger, nil))
	h := api.NewHandler(engine, mem, logger)
	router := api.NewRouter(h, api.RouterConfig{
		Logger: logger,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("# metrics\n"))
		}),
	})
	return &testServer{router: router, store: mem}
}

func (s *testServer) do(t *testing.T, method, path, role string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(api.HeaderUserID, "user-42")
		req.Header.Set(api.HeaderUserRole, role)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (s *testServer) createProduct(t *testing.T, name, stock string) int64 {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/v1/master/products", api.RoleAdmin, map[string]any{
		"product_name":   name,
		"stock_quantity": stock,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p api.ProductDTO
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p.ProductID
}

func saleBody(productID int64, number string, qty any) map[string]any {
	return map[string]any{
		"customer_id":    9,
		"invoice_number": number,
		"invoice_date":   "2025-05-01",
		"details": []map[string]any{
			{"product_id": productID, "quantity": qty, "unit_price": 100, "gst_rate": 18},
		},
	}
}

func decodeData(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func fieldNames(errs []api.FieldError) []string {
	names := make([]string, len(errs))
	for i, e := range errs {
		names[i] = e.Field
	}
	return names
}

// =============================================================================
// IDENTITY
// =============================================================================

func TestAuth_MissingIdentity(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/master/products", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, api.CodeUnauthenticated, env.Code)
}

func TestAuth_RoleChecks(t *testing.T) {
	s := newTestServer(t)
	pid := s.createProduct(t, "A", "10")

	tests := []struct {
		name   string
		path   string
		role   string
		body   any
		status int
	}{
		{"sales role may sell", "/api/v1/transact/sales", api.RoleSales, saleBody(pid, "INV-1", 1), http.StatusCreated},
		{"unknown role may not sell", "/api/v1/transact/sales", "ROLE_VIEWER", saleBody(pid, "INV-2", 1), http.StatusForbidden},
		{"sales role may not reconcile", "/api/v1/transact/stock-recon", api.RoleSales,
			map[string]any{"product_id": pid, "actual_quantity": 5, "adjustment_reason": "audit"}, http.StatusForbidden},
		{"sales role may not create products", "/api/v1/master/products", api.RoleSales,
			map[string]any{"product_name": "B"}, http.StatusForbidden},
		{"role is case-insensitive", "/api/v1/transact/sales", "role_office", saleBody(pid, "INV-3", 1), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPost, tt.path, tt.role, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusForbidden {
				assert.Equal(t, api.CodeForbidden, env.Code)
			}
		})
	}
}

func TestHealthz_NoIdentityNeeded(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	s.router.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
}

// =============================================================================
// SALES
// =============================================================================

func TestCreateSale_Success(t *testing.T) {
	// GIVEN: Product with 5 on hand
	// WHEN: POST a sale of 2 at 100 with 18% GST
	// THEN: 201, code SALE00001, line total 236, stock 3

	s := newTestServer(t)
	pid := s.createProduct(t, "Steel bolt", "5")

	rec, env := s.do(t, http.MethodPost, "/api/v1/transact/sales", api.RoleOffice, saleBody(pid, "INV-1001", "2"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "Sales record created successfully", env.Message)

	data := decodeData(t, env)
	assert.NotZero(t, data["salesId"])
	assert.Equal(t, "SALE00001", data["code"])
	details := data["details"].([]any)
	require.Len(t, details, 1)
	first := details[0].(map[string]any)
	assert.Equal(t, "36", first["gst_amount"])
	assert.Equal(t, "236", first["total_amount"])

	rec, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/master/products/%d", pid), api.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", decodeData(t, env)["stock_quantity"])
}

func TestCreateSale_InsufficientStock(t *testing.T) {
	s := newTestServer(t)
	pid := s.createProduct(t, "Steel bolt", "1")

	rec, env := s.do(t, http.MethodPost, "/api/v1/transact/sales", api.RoleOffice, saleBody(pid, "INV-1", 2))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeInsufficientStock, env.Code)
	assert.Contains(t, env.Message, "Available: 1, Required: 2")

	data := decodeData(t, env)
	assert.Equal(t, "Steel bolt", data["product_name"])
	assert.Equal(t, "1", data["available"])
	assert.Equal(t, "2", data["required"])
}

func TestCreateSale_UnknownProduct(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/transact/sales", api.RoleOffice, saleBody(77, "INV-1", 1))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, api.CodeProductNotFound, env.Code)
}

func TestCreateSale_DuplicateInvoice(t *testing.T) {
	s := newTestServer(t)
	pid := s.createProduct(t, "A", "10")

	rec, _ := s.do(t, http.MethodPost, "/api/v1/transact/sales", api.RoleOffice, saleBody(pid, "INV-1", 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := s.do(t, http.MethodPost, "/api/v1/transact/sales", api.RoleOffice, saleBody(pid, "INV-1", 1))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, api.CodeDuplicateInvoice, env.Code)
}

func TestCreateSale_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		fields []string
	}{
		{
			name: "struct rules",
			body: map[string]any{
				"customer_id":  1,
				"invoice_date": "2025-05-01",
				"details": []map[string]any{
					{"product_id": 1, "quantity": 0, "unit_price": 1, "gst_rate": 150},
				},
			},
			fields: []string{"invoice_number", "details[0].quantity", "details[0].gst_rate"},
		},
		{
			name:   "no lines",
			body:   map[string]any{"customer_id": 1, "invoice_number": "X", "invoice_date": "2025-05-01", "details": []any{}},
			fields: []string{"details"},
		},
		{
			name: "counterparty, date and scale",
			body: map[string]any{
				"invoice_number": "X",
				"invoice_date":   "05/01/2025",
				"details": []map[string]any{
					{"product_id": 1, "quantity": "1.2345", "unit_price": "1.001", "gst_rate": 5},
				},
			},
			fields: []string{"customer_id", "invoice_date", "details[0].quantity", "details[0].unit_price"},
		},
		{
			name:   "malformed json",
			body:   `{"customer_id": `,
			fields: []string{"body"},
		},
		{
			name:   "body over the size limit",
			body:   `{"invoice_number": "` + strings.Repeat("x", api.MaxBodyBytes) + `"}`,
			fields: []string{"body"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPost, "/api/v1/transact/sales", api.RoleOffice, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, api.CodeValidationFailed, env.Code)
			assert.ElementsMatch(t, tt.fields, fieldNames(env.Errors))
		})
	}

	sales, err := s.store.Invoices(context.Background(), inventory.KindSale, 0)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestSales_ReadEndpoints(t *testing.T) {
	s := newTestServer(t)
	pid := s.createProduct(t, "A", "10")

	_, created := s.do(t, http.MethodPost, "/api/v1/transact/sales", api.RoleOffice, saleBody(pid, "INV-1", 1))
	salesID := int64(decodeData(t, created)["salesId"].(float64))
	s.do(t, http.MethodPost, "/api/v1/transact/sales", api.RoleOffice, saleBody(pid, "INV-2", 1))

	rec, env := s.do(t, http.MethodGet, "/api/v1/transact/sales", api.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []api.InvoiceDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "INV-2", list[0].InvoiceNumber)
	assert.Empty(t, list[0].Details)

	rec, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/transact/sales/%d", salesID), api.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var one api.InvoiceDTO
	require.NoError(t, json.Unmarshal(env.Data, &one))
	assert.Equal(t, "INV-1", one.InvoiceNumber)
	assert.Equal(t, int64(9), one.CustomerID)
	assert.Equal(t, "2025-05-01", one.InvoiceDate)
	require.Len(t, one.Details, 1)

	rec, env = s.do(t, http.MethodGet, "/api/v1/transact/sales/999", api.RoleSales, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, api.CodeNotFound, env.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/transact/sales/abc", api.RoleSales, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// PURCHASES
// =============================================================================

func TestCreatePurchase_Success(t *testing.T) {
	s := newTestServer(t)
	pid := s.createProduct(t, "A", "4")

	rec, env := s.do(t, http.MethodPost, "/api/v1/transact/purchase", api.RoleOffice, map[string]any{
		"supplier_id":    3,
		"invoice_number": "SUP-9",
		"invoice_date":   "2025-05-02T10:00:00Z",
		"details": []map[string]any{
			{"product_id": pid, "quantity": 10, "unit_price": 5, "gst_rate": 18},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Purchase record created successfully", env.Message)

	data := decodeData(t, env)
	assert.NotZero(t, data["purchaseId"])
	assert.Equal(t, "PUR00001", data["code"])
	line := data["details"].([]any)[0].(map[string]any)
	assert.Equal(t, "50", line["amount"])
	assert.Equal(t, "9", line["gst_amount"])
	assert.Equal(t, "59", line["total_amount"])

	p, err := s.store.Product(context.Background(), inventory.ProductID(pid))
	require.NoError(t, err)
	assert.Equal(t, "14", p.StockQuantity.String())
}

func TestCreatePurchase_RequiresSupplier(t *testing.T) {
	s := newTestServer(t)
	pid := s.createProduct(t, "A", "4")

	rec, env := s.do(t, http.MethodPost, "/api/v1/transact/purchase", api.RoleOffice, saleBody(pid, "SUP-1", 1))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"supplier_id"}, fieldNames(env.Errors))
}

// =============================================================================
// STOCK RECONCILIATION
// =============================================================================

func TestCreateStockRecon_ComputesDifference(t *testing.T) {
	// GIVEN: Product with 40 on hand
	// WHEN: Counting 37 and sending a wrong difference
	// THEN: stockDifference is -3 and stock is 37

	s := newTestServer(t)
	pid := s.createProduct(t, "Paint", "40")

	rec, env := s.do(t, http.MethodPost, "/api/v1/transact/stock-recon", api.RoleOffice, map[string]any{
		"product_id":        pid,
		"current_quantity":  "40",
		"actual_quantity":   "37",
		"difference":        "5",
		"adjustment_reason": "damaged",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Stock reconciliation record created successfully", env.Message)

	data := decodeData(t, env)
	assert.Equal(t, "RECON00001", data["code"])
	assert.Equal(t, "40", data["currentQuantity"])
	assert.Equal(t, "37", data["actualQuantity"])
	assert.Equal(t, "-3", data["stockDifference"])
	reconID := int64(data["reconId"].(float64))

	rec, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/transact/stock-recon/%d", reconID), api.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dto api.StockReconDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, "damaged", dto.AdjustmentReason)
	assert.Equal(t, "-3", dto.Difference.String())

	rec, env = s.do(t, http.MethodGet, "/api/v1/transact/stock-recon", api.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []api.StockReconDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestCreateStockRecon_Validation(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/transact/stock-recon", api.RoleAdmin, map[string]any{
		"product_id":      1,
		"actual_quantity": -1,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"actual_quantity", "adjustment_reason"}, fieldNames(env.Errors))
}

func TestCreateStockRecon_UnknownProduct(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/transact/stock-recon", api.RoleAdmin, map[string]any{
		"product_id":        5,
		"actual_quantity":   1,
		"adjustment_reason": "audit",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, api.CodeProductNotFound, env.Code)
}

// =============================================================================
// PRODUCT MASTER
// =============================================================================

func TestProducts(t *testing.T) {
	s := newTestServer(t)
	s.createProduct(t, "plenty", "50")
	low := s.createProduct(t, "low", "2")

	rec, env := s.do(t, http.MethodGet, "/api/v1/master/products", api.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []api.ProductDTO
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all, 2)
	assert.Equal(t, "PROD00001", all[0].ProductCode)

	rec, env = s.do(t, http.MethodGet, "/api/v1/master/products/low-stock", api.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lows []api.ProductDTO
	require.NoError(t, json.Unmarshal(env.Data, &lows))
	require.Len(t, lows, 1)
	assert.Equal(t, low, lows[0].ProductID)

	rec, env = s.do(t, http.MethodGet, "/api/v1/master/products/low-stock?threshold=100", api.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &lows))
	assert.Len(t, lows, 2)

	rec, env = s.do(t, http.MethodGet, "/api/v1/master/products/low-stock?threshold=-1", api.RoleSales, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"threshold"}, fieldNames(env.Errors))

	rec, env = s.do(t, http.MethodGet, "/api/v1/master/products/999", api.RoleSales, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, api.CodeProductNotFound, env.Code)
}

func TestCreateProduct_Validation(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/master/products", api.RoleAdmin, map[string]any{
		"stock_quantity": -4,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"product_name", "stock_quantity"}, fieldNames(env.Errors))
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadScenario(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/scenarios/load", api.RoleOffice, map[string]any{"scenario_id": "low-stock"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := s.do(t, http.MethodPost, "/api/v1/scenarios/load", api.RoleAdmin, map[string]any{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"scenario_id"}, fieldNames(env.Errors))

	rec, _ = s.do(t, http.MethodPost, "/api/v1/scenarios/load", api.RoleAdmin, map[string]any{"scenario_id": "low-stock"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	products, err := s.store.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 3)

	rec, env = s.do(t, http.MethodGet, "/api/v1/scenarios", api.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []api.ScenarioDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.NotEmpty(t, list)
}
