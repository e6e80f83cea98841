/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:      Request logging
  2. Recoverer:   Panic recovery (500 instead of crash)
  3. RequestID:   Unique ID per request for tracing
  4. CORS:        Cross-origin requests for frontend
  5. RequireUser: Caller identity header check

IDENTITY:
  Every /api request must carry an X-User-ID header. There is no session
  management here; the header is trusted and only used for audit logs.
  A gateway in front of this service owns real authentication.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/payroll-engine/ledger"
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Org-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/leave-value", h.GetLeaveValue)
			r.Get("/{id}/days", h.GetDays)
		})

		r.Post("/workdays", h.SaveWorkDay)
		r.Route("/leave-days", func(r chi.Router) {
			r.Post("/", h.SaveLeaveDay)
			r.Post("/bulk", h.SaveMixedLeave)
		})
		r.Post("/adjustments", h.SaveAdjustments)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// requireUser rejects requests without caller identity and org headers.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-ID") == "" {
			writeError(w, http.StatusUnauthorized, ledger.ErrAuthRequired.Error(), nil)
			return
		}
		if r.Header.Get("X-Org-ID") == "" {
			writeError(w, http.StatusBadRequest, ledger.ErrOrgRequired.Error(), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
