package middleware

import (
	"net/http"

	"provalab-api/internal/data/repository"
	"provalab-api/pkg/token"
	"provalab-api/pkg/utils"

	"go.uber.org/zap"
)

// AuthSession accepts only session-scoped bearer tokens whose user still
// exists. Pending and magic-link tokens are rejected here.
func AuthSession(codec *token.Codec, users repository.UserRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token
			raw, ok := utils.BearerToken(r)
			if !ok {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			payload, ok := codec.VerifyScope(raw, token.ScopeSession)
			if !ok {
				logger.Warn("Invalid or expired session token", zap.String("path", r.URL.Path))
				utils.ResponseUnauthorized(w, "Invalid or expired session")
				return
			}

			user, err := users.FindByID(r.Context(), payload.Subject)
			if err != nil {
				logger.Error("Failed to load session user",
					zap.String("user_id", payload.Subject.String()),
					zap.Error(err))
				utils.ResponseInternalError(w, "Internal server error")
				return
			}
			if user == nil {
				logger.Warn("Session for unknown user", zap.String("user_id", payload.Subject.String()))
				utils.ResponseUnauthorized(w, "Invalid or expired session")
				return
			}

			ctx := utils.SetUserContext(r.Context(), user.ID, user.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
