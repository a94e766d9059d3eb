package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"provalab-api/internal/usecase"
	"provalab-api/pkg/apperr"
	"provalab-api/pkg/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Auth     *AuthHandler
	Profile  *ProfileHandler
	Exercise *ExerciseHandler
	Attempt  *AttemptHandler
	Webhook  *WebhookHandler
}

func NewHandler(service *usecase.Service, config *utils.Config, log *zap.Logger) *Handler {
	return &Handler{
		Auth:     NewAuthHandler(service, log),
		Profile:  NewProfileHandler(service.Profile, service.Plan, log),
		Exercise: NewExerciseHandler(service.Exercise, log),
		Attempt:  NewAttemptHandler(service.Attempt, log),
		Webhook:  NewWebhookHandler(service.Plan, config.Plan.WebhookToken, log),
	}
}

// decodeJSON reads the body into dst and runs struct validation. It writes
// the 400 itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}

	if validationErrors := utils.ValidateStruct(dst); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return false
	}
	return true
}

// handleServiceError logs by severity and writes the mapped response.
func handleServiceError(log *zap.Logger, w http.ResponseWriter, err error, operation string) {
	kind := apperr.KindOf(err)
	status := utils.StatusFor(kind)

	switch {
	case status >= http.StatusInternalServerError:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("kind", string(kind)))
	default:
		log.Warn(operation+" failed", zap.String("kind", string(kind)), zap.Error(err))
	}

	utils.ResponseError(w, err)
}
