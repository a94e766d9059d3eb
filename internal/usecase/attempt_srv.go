package usecase

import (
	"context"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/dto/request"
	"provalab-api/internal/dto/response"
	"provalab-api/pkg/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const progressWindow = 100

type AttemptService interface {
	Create(ctx context.Context, userID uuid.UUID, req *request.CreateAttemptRequest) (*response.AttemptResponse, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]response.AttemptResponse, error)
	Stats(ctx context.Context, userID uuid.UUID) (*response.StatsResponse, error)
	Progress(ctx context.Context, userID uuid.UUID) (*response.ProgressResponse, error)
}

type attemptService struct {
	deps Dependencies
	log  *zap.Logger
}

func NewAttemptService(deps Dependencies) AttemptService {
	deps.SetDefaults()
	return &attemptService{
		deps: deps,
		log:  deps.Log.With(zap.String("service", "attempt")),
	}
}

func (s *attemptService) Create(ctx context.Context, userID uuid.UUID, req *request.CreateAttemptRequest) (*response.AttemptResponse, error) {
	exerciseID, err := uuid.Parse(req.ExerciseID)
	if err != nil {
		return nil, apperr.Validation("Invalid exercise id")
	}

	repos := s.deps.Store.Repos()
	ex, err := repos.Exercise.FindByID(ctx, exerciseID)
	if err != nil {
		s.log.Error("Failed to get exercise", zap.Error(err), zap.String("exercise_id", exerciseID.String()))
		return nil, apperr.Internal(err)
	}
	if ex == nil {
		return nil, apperr.NotFound("Exercise not found")
	}

	attempt := &entity.Attempt{
		BaseSimple:       entity.BaseSimple{ID: uuid.New(), CreatedAt: s.deps.Now()},
		UserID:           userID,
		ExerciseID:       exerciseID,
		UserAnswer:       req.UserAnswer,
		IsCorrect:        req.IsCorrect != nil && *req.IsCorrect,
		TimeSpentSeconds: req.TimeSpentSeconds,
	}
	if err := repos.Attempt.Create(ctx, attempt); err != nil {
		s.log.Error("Failed to create attempt", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, apperr.Internal(err)
	}
	attempt.Exercise = ex

	s.log.Info("Attempt recorded",
		zap.String("user_id", userID.String()),
		zap.String("exercise_id", exerciseID.String()),
		zap.Bool("is_correct", attempt.IsCorrect))

	resp := response.AttemptToResponse(attempt)
	return &resp, nil
}

func (s *attemptService) List(ctx context.Context, userID uuid.UUID, limit int) ([]response.AttemptResponse, error) {
	list, err := s.deps.Store.Repos().Attempt.ListByUser(ctx, userID, limit)
	if err != nil {
		s.log.Error("Failed to list attempts", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, apperr.Internal(err)
	}
	return response.AttemptsToResponse(list), nil
}

func (s *attemptService) Stats(ctx context.Context, userID uuid.UUID) (*response.StatsResponse, error) {
	stats, err := s.deps.Store.Repos().Attempt.Stats(ctx, userID)
	if err != nil {
		s.log.Error("Failed to get attempt stats", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, apperr.Internal(err)
	}
	resp := response.StatsToResponse(stats)
	return &resp, nil
}

func (s *attemptService) Progress(ctx context.Context, userID uuid.UUID) (*response.ProgressResponse, error) {
	attempts, err := s.List(ctx, userID, progressWindow)
	if err != nil {
		return nil, err
	}
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &response.ProgressResponse{Attempts: attempts, Stats: *stats}, nil
}
