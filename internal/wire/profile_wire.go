package wire

import (
	"provalab-api/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireProfile(r chi.Router, profileHandler *adaptor.ProfileHandler, g guards) {
	r.Route("/api/profiles", func(r chi.Router) {
		r.Use(g.session)

		r.Get("/me", profileHandler.GetMine)
		r.Put("/me", profileHandler.UpdateMine)
		r.Get("/plan", profileHandler.Plan)
	})
}
