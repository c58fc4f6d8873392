/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RealIP:         Client address behind the proxy
  3. RequestLogger:  Access log through logrus
  4. Recoverer:      Panic recovery (500 instead of crash)
  5. CORS:           Cross-origin requests for the SPA
  6. Authenticate:   Caller identity, /api/v1 only

ROUTE GROUPS:
  /api/v1/transact/*        Sales, purchases, stock reconciliation
  /api/v1/master/products*  Product master
  /api/v1/scenarios*        Demo data (admin only)
  /metrics                  Prometheus
  /healthz                  Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Identity and role checks
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// RouterConfig holds what the router needs besides the handler.
type RouterConfig struct {
	CORSOrigins []string
	Metrics     http.Handler
	Logger      logrus.FieldLogger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = h.Logger
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:5173"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: cfg.Logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderUserID, HeaderUserRole},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Response{Status: "success", Message: "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate)

		// Transaction routes
		r.Route("/transact", func(r chi.Router) {
			r.Route("/sales", func(r chi.Router) {
				r.With(RequireRole(invoiceRoles...)).Post("/", h.CreateSale)
				r.Get("/", h.ListSales)
				r.Get("/{id}", h.GetSale)
			})
			r.Route("/purchase", func(r chi.Router) {
				r.With(RequireRole(invoiceRoles...)).Post("/", h.CreatePurchase)
				r.Get("/", h.ListPurchases)
				r.Get("/{id}", h.GetPurchase)
			})
			r.Route("/stock-recon", func(r chi.Router) {
				r.With(RequireRole(stockRoles...)).Post("/", h.CreateStockRecon)
				r.Get("/", h.ListStockRecons)
				r.Get("/{id}", h.GetStockRecon)
			})
		})

		// Master data routes
		r.Route("/master/products", func(r chi.Router) {
			r.With(RequireRole(stockRoles...)).Post("/", h.CreateProduct)
			r.Get("/", h.ListProducts)
			r.Get("/low-stock", h.ListLowStock)
			r.Get("/{id}", h.GetProduct)
		})

		// Demo data
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.With(RequireRole(RoleAdmin)).Post("/load", h.LoadScenario)
		})
	})

	return r
}
