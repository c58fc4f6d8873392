/*
scenarios.go - Demo data loaders for local runs and demonstrations

PURPOSE:

	Populates an empty database with a small catalog and a few documents,
	all written through the engine so stock, codes and records stay
	consistent with what real requests would produce.

AVAILABLE SCENARIOS:

	hardware-store:  Three products, one purchase, two sales
	stock-audit:     Products with a reconciliation that shrinks stock
	low-stock:       Products sold down below the low-stock threshold

HOW SCENARIOS WORK:
 1. Create products with opening stock
 2. Post purchases and sales as the seeding actor
 3. Optionally record a physical count

USAGE VIA API:

	POST /api/v1/scenarios/load
	{"scenario_id": "hardware-store"}

NOTE:

	Scenarios append data; they do not reset the database. Invoice numbers
	carry a per-load suffix so a scenario can be loaded more than once.
	Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and Engine
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type scenarioLoader func(ctx context.Context, s *seeder) error

var scenarios = []ScenarioDTO{
	{ID: "hardware-store", Name: "Hardware Store", Description: "Three products, one purchase, two sales"},
	{ID: "stock-audit", Name: "Stock Audit", Description: "Physical count lower than the book quantity"},
	{ID: "low-stock", Name: "Low Stock", Description: "Products sold down below the low-stock threshold"},
}

var scenarioLoaders = map[string]scenarioLoader{
	"hardware-store": loadHardwareStoreScenario,
	"stock-audit":    loadStockAuditScenario,
	"low-stock":      loadLowStockScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "", scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeEngineError(w, h.Logger, "load_scenario", err)
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeEngineError(w, h.Logger, "load_scenario", &ValidationError{
			Fields: []FieldError{{Field: "scenario_id", Message: "unknown scenario"}},
		})
		return
	}

	actor, _ := ActorFrom(r.Context())
	s := newSeeder(h.Engine, actor)
	if err := load(r.Context(), s); err != nil {
		writeEngineError(w, h.Logger, "load_scenario", err)
		return
	}

	h.Logger.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeSuccess(w, http.StatusOK, "Scenario loaded", map[string]any{
		"scenario": req.ScenarioID,
		"products": s.products,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadHardwareStoreScenario(ctx context.Context, s *seeder) error {
	bolt, err := s.product(ctx, "M8 hex bolt", "200")
	if err != nil {
		return err
	}
	paint, err := s.product(ctx, "White enamel paint (l)", "40")
	if err != nil {
		return err
	}
	cable, err := s.product(ctx, "2.5mm copper cable (m)", "150.5")
	if err != nil {
		return err
	}

	if err := s.purchase(ctx, 101, s.line(bolt, "500", "0.35", "18"), s.line(cable, "100", "1.20", "18")); err != nil {
		return err
	}
	if err := s.sale(ctx, 201, s.line(bolt, "120", "0.60", "18"), s.line(paint, "4", "12.50", "18")); err != nil {
		return err
	}
	return s.sale(ctx, 202, s.line(cable, "25.75", "2.10", "18"))
}

func loadStockAuditScenario(ctx context.Context, s *seeder) error {
	tiles, err := s.product(ctx, "Ceramic floor tile", "480")
	if err != nil {
		return err
	}
	if _, err := s.product(ctx, "Tile adhesive (kg)", "95"); err != nil {
		return err
	}
	if err := s.sale(ctx, 301, s.line(tiles, "60", "3.40", "12")); err != nil {
		return err
	}
	_, err = s.engine.Reconcile(ctx, s.actor, inventory.ReconRequest{
		ProductID:        tiles,
		ActualQuantity:   decimal.NewFromInt(412),
		AdjustmentReason: "breakage found during count",
	})
	return err
}

func loadLowStockScenario(ctx context.Context, s *seeder) error {
	fuse, err := s.product(ctx, "10A cartridge fuse", "12")
	if err != nil {
		return err
	}
	tape, err := s.product(ctx, "Insulation tape", "6")
	if err != nil {
		return err
	}
	if _, err := s.product(ctx, "Cable tie (pack)", "80"); err != nil {
		return err
	}
	return s.sale(ctx, 401, s.line(fuse, "9", "1.10", "18"), s.line(tape, "4", "0.80", "18"))
}

// =============================================================================
// SEEDER
// =============================================================================

// seeder posts scenario documents through the engine.
type seeder struct {
	engine   Engine
	actor    inventory.Actor
	run      string
	products []ProductDTO
}

func newSeeder(engine Engine, actor inventory.Actor) *seeder {
	return &seeder{engine: engine, actor: actor, run: uuid.NewString()[:8]}
}

func (s *seeder) product(ctx context.Context, name, stock string) (inventory.ProductID, error) {
	p, err := s.engine.CreateProduct(ctx, s.actor, inventory.Product{
		Name:          name,
		StockQuantity: decimal.RequireFromString(stock),
	})
	if err != nil {
		return 0, fmt.Errorf("create product %q: %w", name, err)
	}
	s.products = append(s.products, toProductDTO(*p))
	return p.ID, nil
}

func (s *seeder) line(id inventory.ProductID, qty, price, gst string) inventory.LineItem {
	return inventory.LineItem{
		ProductID: id,
		Quantity:  decimal.RequireFromString(qty),
		UnitPrice: decimal.RequireFromString(price),
		GSTRate:   decimal.RequireFromString(gst),
	}
}

func (s *seeder) invoice(counterparty int64, prefix string, lines []inventory.LineItem) inventory.Invoice {
	return inventory.Invoice{
		CounterpartyID: counterparty,
		InvoiceNumber:  fmt.Sprintf("%s-%d-%s", prefix, counterparty, s.run),
		InvoiceDate:    time.Now().UTC().Truncate(24 * time.Hour),
		Notes:          "demo scenario",
		Lines:          lines,
	}
}

func (s *seeder) sale(ctx context.Context, customer int64, lines ...inventory.LineItem) error {
	_, err := s.engine.CreateSale(ctx, s.actor, s.invoice(customer, "DEMO-S", lines))
	return err
}

func (s *seeder) purchase(ctx context.Context, supplier int64, lines ...inventory.LineItem) error {
	_, err := s.engine.CreatePurchase(ctx, s.actor, s.invoice(supplier, "DEMO-P", lines))
	return err
}
