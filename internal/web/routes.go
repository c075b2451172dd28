package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-enroll/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	sessionsHandler := handlers.NewSessionsHandler(s.sessions)
	credentialHandler := handlers.NewCredentialHandler(s.sessions.Store())

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Capture sessions
		r.Get("/sessions", sessionsHandler.List)
		r.Post("/sessions", sessionsHandler.Create)
		r.Get("/sessions/{id}", sessionsHandler.Get)
		r.Delete("/sessions/{id}", sessionsHandler.Delete)
		r.Post("/sessions/{id}/frames", sessionsHandler.Frame)
		r.Post("/sessions/{id}/start", sessionsHandler.Start)
		r.Post("/sessions/{id}/abort", sessionsHandler.Abort)
		r.Get("/sessions/{id}/events", sessionsHandler.Events)

		// Credential dashboard
		r.Get("/credential", credentialHandler.Get)
		r.Delete("/credential", credentialHandler.Delete)
	})
}
