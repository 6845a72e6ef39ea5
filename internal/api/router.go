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
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus exposition (no auth required for scraping)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Admin login (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Gateway endpoints (authenticated by the API key in the body)
		r.Post("/gateways/register", s.handleRegisterDevices)
		r.Post("/gateways/auth", s.handleGatewayAuth)

		// Relay webhook (authorizes by the gateway key it forwards)
		r.Post("/relay/auth", s.handleRelayAuth)

		// WebSocket (auth via token query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/gateways", func(r chi.Router) {
				r.Get("/", s.handleListGateways)
				r.Post("/", s.handleCreateGateway)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetGateway)
					r.Patch("/toggle", s.handleToggleGateway)
					r.Delete("/", s.handleDeleteGateway)
				})
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
				})
			})

			r.Route("/cameras", func(r chi.Router) {
				r.Get("/", s.handleListCameras)
				r.Get("/devices", s.handleListCameraDevices)
			})

			r.Get("/audit", s.handleListAuditLogs)
			r.Get("/system/metrics", s.handleSystemMetrics)
		})
	})

	return r
}
