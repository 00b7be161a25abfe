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
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/system/status", s.handleSystemStatus)

		// Attributed routes: every command, stop, and mutation carries
		// the requester identity resolved by the middleware.
		r.Group(func(r chi.Router) {
			r.Use(s.identityMiddleware)

			// Command dispatch
			r.Post("/control", s.handleControl)
			r.Post("/emergency-stop", s.handleEmergencyStop)

			// Device registry
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Get("/stats", s.handleDeviceStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Get("/state", s.handleGetDeviceState)
				})
			})

			// Zone registry
			r.Route("/zones", func(r chi.Router) {
				r.Get("/", s.handleListZones)
				r.Post("/", s.handleCreateZone)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetZone)
					r.Patch("/", s.handleUpdateZone)
					r.Delete("/", s.handleDeleteZone)
					r.Get("/devices", s.handleZoneDevices)
				})
			})

			// Audit trail
			r.Get("/audit", s.handleListAudit)

			// WebSocket outcome stream
			r.Get("/ws", s.handleWebSocket)
		})
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
