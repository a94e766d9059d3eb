package adaptor

import (
	"net/http"

	"provalab-api/internal/dto/request"
	"provalab-api/internal/usecase"
	"provalab-api/pkg/utils"

	"go.uber.org/zap"
)

type AttemptHandler struct {
	service usecase.AttemptService
	log     *zap.Logger
}

func NewAttemptHandler(service usecase.AttemptService, log *zap.Logger) *AttemptHandler {
	return &AttemptHandler{
		service: service,
		log:     log.With(zap.String("handler", "attempt")),
	}
}

// Create handles POST /api/attempts
func (h *AttemptHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateAttemptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	attempt, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create attempt")
		return
	}

	utils.ResponseCreated(w, "Attempt recorded", attempt)
}

// List handles GET /api/attempts?limit=
func (h *AttemptHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	limit, ok := utils.ParseLimit(r.URL.Query().Get("limit"), 50, 1, 200)
	if !ok {
		utils.ResponseBadRequest(w, "Validation failed", map[string]string{"limit": "Must be between 1 and 200"})
		return
	}

	attempts, err := h.service.List(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(h.log, w, err, "list attempts")
		return
	}

	utils.ResponseSuccess(w, "Attempts retrieved successfully", attempts)
}

// Stats handles GET /api/attempts/stats
func (h *AttemptHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(h.log, w, err, "get attempt stats")
		return
	}

	utils.ResponseSuccess(w, "Stats retrieved successfully", stats)
}

// Progress handles GET /api/attempts/progress
func (h *AttemptHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	progress, err := h.service.Progress(r.Context(), userID)
	if err != nil {
		handleServiceError(h.log, w, err, "get progress")
		return
	}

	utils.ResponseSuccess(w, "Progress retrieved successfully", progress)
}
