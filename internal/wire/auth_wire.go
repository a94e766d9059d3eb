package wire

import (
	"provalab-api/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireAuth(r chi.Router, authHandler *adaptor.AuthHandler, g guards) {
	r.Route("/api/auth", func(r chi.Router) {
		// ==================== PUBLIC ROUTES ====================
		r.Group(func(r chi.Router) {
			r.Use(g.throttle)

			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/google", authHandler.Google)
			r.Post("/verify-email-code", authHandler.VerifyEmailCode)
			r.Post("/verify-email-link", authHandler.VerifyEmailLink)
			r.Post("/resend-code", authHandler.ResendCode)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		// ==================== PROTECTED ROUTES ====================
		r.With(g.session).Get("/me", authHandler.Me)
	})
}
