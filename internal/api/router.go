package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Run-now job triggers
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/poll/run", s.handleRunPoll)
			r.Post("/workflows/run", s.handleRunWorkflows)
			r.Post("/sunlight/run", s.handleRunSunlight)
		})

		// Controller endpoints
		r.Route("/controllers", func(r chi.Router) {
			r.Get("/", s.handleListControllers)
			r.Post("/", s.handleCreateController)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetController)
				r.Patch("/", s.handleUpdateController)
				r.Delete("/", s.handleDeleteController)
			})
		})

		// Workflow endpoints
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleCreateWorkflow)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Patch("/", s.handleUpdateWorkflow)
				r.Delete("/", s.handleDeleteWorkflow)
			})
		})

		// Dimmer config endpoints
		r.Route("/dimmers", func(r chi.Router) {
			r.Get("/", s.handleListDimmers)
			r.Post("/", s.handleCreateDimmer)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDimmer)
				r.Patch("/", s.handleUpdateDimmer)
				r.Delete("/", s.handleDeleteDimmer)
			})
		})

		// Activity feed and configuration change history
		r.Get("/activity", s.handleListActivity)
		r.Get("/audit", s.handleListAudit)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
