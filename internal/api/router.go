// Package api wires all API routes onto the provided ServeMux.
package api

import (
	"net/http"

	"github.com/voltio/gridbase/internal/api/handler"
	"github.com/voltio/gridbase/internal/api/middleware"
	"github.com/voltio/gridbase/internal/health"
)

// RegisterRoutes registers all application routes on mux.
func RegisterRoutes(mux *http.ServeMux, h *health.Handler, auth *handler.AuthHandler,
	projects *handler.ProjectHandler, todos *handler.TodoHandler, jwtSecret string) {
	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /api/v1/health", h.ServeHealth)
	mux.HandleFunc("GET /api/v1/ready", h.ServeReady)

	// Auth endpoints (no auth required)
	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", auth.Refresh)

	protected := middleware.RequireAuth(jwtSecret)
	mux.Handle("POST /api/v1/auth/logout", protected(http.HandlerFunc(auth.Logout)))

	// Todos are user-scoped only; no organization needed.
	mux.Handle("GET /api/v1/todos", protected(http.HandlerFunc(todos.List)))
	mux.Handle("POST /api/v1/todos", protected(http.HandlerFunc(todos.Create)))

	// Project routes are tenant-scoped: the caller must carry an active
	// organization on top of being authenticated.
	tenant := func(fn http.HandlerFunc) http.Handler {
		return protected(middleware.RequireOrganization()(fn))
	}
	mux.Handle("GET /api/v1/projects", tenant(projects.List))
	mux.Handle("POST /api/v1/projects", tenant(projects.Create))
	mux.Handle("GET /api/v1/projects/{id}", tenant(projects.Get))
	mux.Handle("POST /api/v1/projects/{id}/revisions", tenant(projects.CreateRevision))
	mux.Handle("DELETE /api/v1/projects/{id}/revisions/{revisionID}", tenant(projects.DeleteRevision))
	mux.Handle("PUT /api/v1/projects/{id}/config", tenant(projects.SaveConfig))

	// Catch-all 404
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}
