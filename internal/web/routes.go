package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/facegate/facegate/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	cameraHandler := handlers.NewCameraHandler(deps.Frames)
	registerHandler := handlers.NewRegisterHandler(deps.Enroller, deps.Sampler)
	statsHandler := handlers.NewStatsHandler(deps.Store, deps.Model)
	eventsHandler := handlers.NewEventsHandler(deps.Store)
	recognitionsHandler := handlers.NewRecognitionsHandler(deps.Latest)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Camera ingest
		r.Post("/camera/frame", cameraHandler.Upload)

		// Enrollment
		r.Post("/register", registerHandler.Register)

		// Dashboard
		r.Get("/stats", statsHandler.Get)
		r.Get("/events", eventsHandler.List)
		r.Get("/recognitions/latest", recognitionsHandler.Latest)
	})
}
