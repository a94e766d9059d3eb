package wire

import (
	"provalab-api/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireAttempt(r chi.Router, attemptHandler *adaptor.AttemptHandler, g guards) {
	r.Route("/api/attempts", func(r chi.Router) {
		r.Use(g.session)

		r.Get("/", attemptHandler.List)
		r.Post("/", attemptHandler.Create)
		r.Get("/stats", attemptHandler.Stats)
		r.Get("/progress", attemptHandler.Progress)
	})
}
