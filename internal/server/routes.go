package server

import (
	"expvar"

	"github.com/go-chi/chi/v5"

	"github.com/streamops/streamcheck/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.run, s.store)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/validations", h.RunValidation)
		r.Get("/validations/latest", h.LatestReport)
		r.Get("/validations/latest/endpoints/{index}", h.LatestEndpoint)
	})

	r.Handle("/debug/vars", expvar.Handler())
}
