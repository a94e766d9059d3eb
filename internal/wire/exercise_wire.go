package wire

import (
	"provalab-api/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireExercise(r chi.Router, exerciseHandler *adaptor.ExerciseHandler, g guards) {
	r.Route("/api/exercises", func(r chi.Router) {
		r.Use(g.session)

		r.Get("/", exerciseHandler.List)
		r.Post("/", exerciseHandler.Create)
		r.Get("/{id}", exerciseHandler.Get)

		// each random pick spends one free use
		r.With(g.meter).Get("/random", exerciseHandler.Random)
	})
}
