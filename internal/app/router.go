package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authgrid/authgrid/internal/apperrors"
	"github.com/authgrid/authgrid/internal/auth"
	"github.com/authgrid/authgrid/internal/config"
	"github.com/authgrid/authgrid/internal/invites"
	"github.com/authgrid/authgrid/internal/orgs"
	"github.com/authgrid/authgrid/internal/permissions"
	"github.com/authgrid/authgrid/internal/roles"
	"github.com/authgrid/authgrid/internal/users"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware(cfg.JWTSecret))

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// Users and the global permission catalog
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/users", users.HandleCreate(pool))

		r.Get("/permissions", permissions.HandleList(pool))
		r.Post("/permissions", permissions.HandleCreate(pool))

		// Organisations, org-scoped roles and role assignments
		r.Route("/orgs", func(r chi.Router) {
			r.Post("/", orgs.HandleCreate(pool))
			r.Get("/{org_id}/members", orgs.HandleListMembers(pool))

			r.Get("/{org_id}/roles", roles.HandleList(pool))
			r.Post("/{org_id}/roles", roles.HandleCreate(pool))
			r.Put("/{org_id}/roles/permissions", roles.HandleBulkSyncPermissions(pool))
			r.With(auth.RequireAuth).Put("/{org_id}/roles/{role_id}/disable", roles.HandleDisable(pool))
			r.Put("/{org_id}/roles/{role_id}/default", roles.HandleSetDefault(pool))
			r.Put("/{org_id}/users/{user_id}/roles", roles.HandleAssignUserRole(pool))
		})

		// Permission synchronization addressed by role id alone
		r.Put("/roles/{role_id}/permissions", roles.HandleSyncPermissions(pool))

		// Invitation lifecycle. GET and POST acceptance share one contract.
		r.Route("/invitations", func(r chi.Router) {
			r.Post("/", invites.HandleGenerate(pool, cfg.BaseURL))
			r.Get("/accept", invites.HandleAccept(pool))
			r.Post("/accept", invites.HandleAcceptPost(pool))
		})
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
