package middleware

import (
	"context"
	"net/http"

	"provalab-api/internal/dto/response"
	"provalab-api/pkg/apperr"
	"provalab-api/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PlanChecker interface {
	CheckAndConsume(ctx context.Context, userID uuid.UUID, increment bool) (*response.PlanResponse, error)
}

// PlanGate runs after AuthSession. With increment set, each request that
// gets through spends one free use.
func PlanGate(plans PlanChecker, increment bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			if _, err := plans.CheckAndConsume(r.Context(), userID, increment); err != nil {
				if !apperr.Is(err, apperr.KindFreeLimitReached) {
					logger.Error("Plan gate failed", zap.Error(err), zap.String("user_id", userID.String()))
				}
				utils.ResponseError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
