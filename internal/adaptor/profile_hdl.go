package adaptor

import (
	"net/http"

	"provalab-api/internal/dto/request"
	"provalab-api/internal/usecase"
	"provalab-api/pkg/utils"

	"go.uber.org/zap"
)

type ProfileHandler struct {
	service usecase.ProfileService
	plan    usecase.PlanService
	log     *zap.Logger
}

func NewProfileHandler(service usecase.ProfileService, plan usecase.PlanService, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		plan:    plan,
		log:     log.With(zap.String("handler", "profile")),
	}
}

// GetMine handles GET /api/profiles/me
func (h *ProfileHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	profile, err := h.service.GetMine(r.Context(), userID)
	if err != nil {
		handleServiceError(h.log, w, err, "get profile")
		return
	}

	utils.ResponseSuccess(w, "Profile retrieved successfully", profile)
}

// UpdateMine handles PUT /api/profiles/me
func (h *ProfileHandler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.service.UpdateMine(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "update profile")
		return
	}

	utils.ResponseSuccess(w, "Profile updated successfully", profile)
}

// Plan handles GET /api/profiles/plan
func (h *ProfileHandler) Plan(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	plan, err := h.plan.GetPlan(r.Context(), userID)
	if err != nil {
		handleServiceError(h.log, w, err, "get plan")
		return
	}

	utils.ResponseSuccess(w, "Plan retrieved successfully", plan)
}
