package adaptor

import (
	"net/http"

	"provalab-api/internal/dto/request"
	"provalab-api/internal/usecase"
	"provalab-api/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ExerciseHandler struct {
	service usecase.ExerciseService
	log     *zap.Logger
}

func NewExerciseHandler(service usecase.ExerciseService, log *zap.Logger) *ExerciseHandler {
	return &ExerciseHandler{
		service: service,
		log:     log.With(zap.String("handler", "exercise")),
	}
}

// List handles GET /api/exercises?subject=&difficulty=&limit=
func (h *ExerciseHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, ok := utils.ParseLimit(query.Get("limit"), 50, 1, 100)
	if !ok {
		utils.ResponseBadRequest(w, "Validation failed", map[string]string{"limit": "Must be between 1 and 100"})
		return
	}

	exercises, err := h.service.List(r.Context(), query.Get("subject"), query.Get("difficulty"), limit)
	if err != nil {
		handleServiceError(h.log, w, err, "list exercises")
		return
	}

	utils.ResponseSuccess(w, "Exercises retrieved successfully", exercises)
}

// Random handles GET /api/exercises/random?subject=&difficulty=
func (h *ExerciseHandler) Random(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	exercise, err := h.service.Random(r.Context(), query.Get("subject"), query.Get("difficulty"))
	if err != nil {
		handleServiceError(h.log, w, err, "pick random exercise")
		return
	}

	utils.ResponseSuccess(w, "Exercise retrieved successfully", exercise)
}

// Get handles GET /api/exercises/{id}
func (h *ExerciseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid exercise ID", nil)
		return
	}

	exercise, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(h.log, w, err, "get exercise")
		return
	}

	utils.ResponseSuccess(w, "Exercise retrieved successfully", exercise)
}

// Create handles POST /api/exercises
func (h *ExerciseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateExerciseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exercise, err := h.service.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create exercise")
		return
	}

	utils.ResponseCreated(w, "Exercise created successfully", exercise)
}
