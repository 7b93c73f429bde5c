/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the desk frontend

ROUTE GROUPS:
  /api/books/*        Catalog and shelf-slot management
  /api/borrowers/*    Borrower registry
  /api/loans/*        Loan lifecycle
  /api/sanctions/*    Sanction management
  /api/reports/*      Circulation summaries

SECURITY NOTE:
  The actor identity comes from request headers; there is no session
  layer here. Capability enforcement lives in the domain engines.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Role", "X-Actor-Id"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.ListBooks)
			r.Post("/", h.RegisterBook)
			r.Get("/vacant", h.ListVacantSlots)
			r.Get("/{id}", h.GetBook)
			r.Post("/{id}/retire", h.RetireBook)
			r.Post("/{id}/reactivate", h.ReactivateBook)
		})

		r.Route("/borrowers", func(r chi.Router) {
			r.Get("/", h.ListBorrowers)
			r.Post("/", h.RegisterBorrower)
			r.Get("/{id}", h.GetBorrower)
			r.Post("/{id}/deactivate", h.DeactivateBorrower)
			r.Post("/{id}/reactivate", h.ReactivateBorrower)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.ListLoans)
			r.Post("/", h.OpenLoan)
			r.Post("/returns", h.CloseLoan)
		})

		r.Route("/sanctions", func(r chi.Router) {
			r.Get("/", h.ListSanctions)
			r.Post("/", h.CreateSanction)
			r.Post("/{id}/revoke", h.RevokeSanction)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", h.GetSummary)
		})
	})

	return r
}
