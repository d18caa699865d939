/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error logs
  2. Logger:     zap request log (method, path, status, duration)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the booking page

ROUTE GROUPS:
  /api                  Action API (?action=)
  /api/reservations/*   Reservations
  /api/blocked-dates/*  Blocked dates
  /api/availability     Policy decisions
  /api/auth             Credentials (?action=)
  /api/admin/*          Basic auth, admin role
  /api.php, /auth.php   Aliases for existing clients
  /health               Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.HandleFunc("/api.php", h.Action)
	r.HandleFunc("/auth.php", h.Auth)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.HandleFunc("/", h.Action)
		r.HandleFunc("/auth", h.Auth)

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", h.serve(http.StatusOK, h.listReservations))
			r.Post("/", h.serve(http.StatusCreated, h.createReservation))
			r.Patch("/{id}", h.serve(http.StatusOK, h.updateFromPath))
			r.Delete("/{id}", h.serve(http.StatusOK, h.deleteFromPath))
		})

		r.Route("/blocked-dates", func(r chi.Router) {
			r.Get("/", h.serve(http.StatusOK, h.listBlocked))
			r.Post("/", h.serve(http.StatusCreated, h.addBlocked))
			r.Delete("/{date}", h.serve(http.StatusOK, h.removeBlockedFromPath))
		})

		r.Get("/availability", h.serve(http.StatusOK, h.availability))

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Post("/reservations", h.serve(http.StatusCreated, h.forceCreateReservation))
			if h.Staff != nil {
				r.Get("/staff-emails", h.serve(http.StatusOK, h.listStaff))
				r.Post("/staff-emails", h.serve(http.StatusCreated, h.addStaff))
				r.Delete("/staff-emails/{email}", h.serve(http.StatusOK, h.removeStaffFromPath))
			}
		})
	})

	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("action", r.URL.Query().Get("action")),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
