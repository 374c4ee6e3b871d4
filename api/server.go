/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/leases/*     Lease lifecycle
  /api/payments/*   Payment lifecycle
  /api/admin/*      Sweep triggers and audit trail
  /healthz          Liveness probe

SECURITY NOTE:
  Identity comes from the X-User-ID header; authentication is expected at
  the gateway in front of this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/lease-engine/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Lease routes
		r.Route("/leases", func(r chi.Router) {
			r.Post("/", h.CreateLease)
			r.Post("/from-application", h.CreateLeaseFromApplication)
			r.Get("/{id}", h.GetLease)
			r.Put("/{id}", h.UpdateLease)
			r.Post("/{id}/terminate", h.TerminateLease)
			r.Post("/{id}/renew", h.RenewLease)
			r.Get("/{id}/payments", h.ListLeasePayments)
			r.Get("/tenant/{userID}", h.ListTenantLeases)
			r.Get("/landlord/{userID}", h.ListLandlordLeases)
			r.Get("/landlord/{userID}/expiring", h.ListExpiringLeases)
			r.Get("/property/{propertyID}/active", h.GetActiveLeaseForProperty)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/{id}", h.GetPayment)
			r.Post("/{id}/pay", h.MarkPaid)
			r.Post("/{id}/confirm", h.ConfirmPayment)
			r.Get("/tenant/{userID}", h.ListTenantPayments)
			r.Get("/tenant/{userID}/statistics", h.GetTenantStatistics)
			r.Get("/tenant/{userID}/upcoming", h.ListUpcomingPayments)
			r.Get("/landlord/{userID}", h.ListLandlordPayments)
			r.Get("/landlord/{userID}/statistics", h.GetLandlordStatistics)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweeps/expirations", h.TriggerExpirationSweep)
			r.Post("/sweeps/overdue", h.TriggerOverdueSweep)
			r.Get("/sweeps/runs", h.ListSweepRuns)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
