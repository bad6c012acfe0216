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
  5. Actor:      X-Actor header -> request context

ROUTE GROUPS:
  /api/payments/*       Payment ledger operations
  /api/students/*       Enrollment, balances, progression actions
  /api/grades/*         Grade levels
  /api/fees/*           Fee structure per (grade, term)
  /api/credits/*        Overpayment credits
  /api/progressions/*   Batch promotion, year transition, stats
  /api/settings/*       Typed system configuration
  /api/dashboard        Collection overview
  /api/admin/seed       Demo data loader (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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

	"github.com/elimu/school-engine/school"
)

// actorMiddleware copies the X-Actor header into the request context so
// mutations record who performed them. Absent header falls back to the
// domain default.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get("X-Actor"); actor != "" {
			r = r.WithContext(school.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor"},
		AllowCredentials: true,
	}))
	r.Use(actorMiddleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Payment ledger routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.listPayments)
			r.Post("/", h.recordPayment)
			r.Get("/{id}", h.getPayment)
			r.Put("/{id}", h.editPayment)
			r.Delete("/{id}", h.deletePayment)
		})

		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.listStudents)
			r.Post("/", h.enrollStudent)
			r.Get("/{id}", h.getStudent)
			r.Put("/{id}", h.updateStudent)
			r.Delete("/{id}", h.deleteStudent)
			r.Get("/{id}/summary", h.studentSummary)
			r.Get("/{id}/fees/{feeID}/balance", h.studentFeeBalance)
			r.Post("/{id}/promote", h.promoteStudent)
			r.Post("/{id}/graduate", h.graduateStudent)
			r.Post("/{id}/repeat", h.repeatStudent)
		})

		// Grade routes
		r.Route("/grades", func(r chi.Router) {
			r.Get("/", h.listGrades)
			r.Post("/", h.createGrade)
		})

		// Fee structure routes
		r.Route("/fees", func(r chi.Router) {
			r.Get("/", h.listFees)
			r.Post("/", h.createFee)
			r.Get("/{id}", h.getFee)
			r.Put("/{id}", h.updateFee)
			r.Delete("/{id}", h.deleteFee)
		})

		// Credit routes
		r.Route("/credits", func(r chi.Router) {
			r.Get("/", h.listCredits)
			r.Get("/totals", h.creditTotals)
		})

		// Progression routes
		r.Route("/progressions", func(r chi.Router) {
			r.Get("/", h.listProgressions)
			r.Get("/stats", h.progressionStats)
			r.Post("/promote-grade", h.promoteGrade)
			r.Post("/promote-all", h.promoteAll)
			r.Post("/start-year", h.startNewYear)
		})

		// Settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.listSettings)
			r.Get("/{key}", h.getSetting)
			r.Put("/{key}", h.putSetting)
		})

		// Dashboard
		r.Get("/dashboard", h.dashboard)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/seed", h.seedDemoData)
		})
	})

	r.Get("/health", h.health)

	return r
}
