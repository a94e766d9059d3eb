package usecase

import (
	"context"
	"strings"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/dto/request"
	"provalab-api/internal/dto/response"
	"provalab-api/pkg/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ExerciseService interface {
	List(ctx context.Context, subject, difficulty string, limit int) ([]response.ExerciseResponse, error)
	Random(ctx context.Context, subject, difficulty string) (*response.ExerciseResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*response.ExerciseResponse, error)
	Create(ctx context.Context, req *request.CreateExerciseRequest) (*response.ExerciseResponse, error)
}

type exerciseService struct {
	deps Dependencies
	log  *zap.Logger
}

func NewExerciseService(deps Dependencies) ExerciseService {
	deps.SetDefaults()
	return &exerciseService{
		deps: deps,
		log:  deps.Log.With(zap.String("service", "exercise")),
	}
}

// parseFilter treats blank values as "any".
func parseFilter(subject, difficulty string) (entity.ExerciseFilter, error) {
	var filter entity.ExerciseFilter
	if strings.TrimSpace(subject) != "" {
		sub, err := entity.ParseSubject(subject)
		if err != nil {
			return filter, apperr.Validation("Unknown subject")
		}
		filter.Subject = sub
	}
	if strings.TrimSpace(difficulty) != "" {
		d, err := entity.ParseDifficulty(difficulty)
		if err != nil {
			return filter, apperr.Validation("Unknown difficulty")
		}
		filter.Difficulty = d
	}
	return filter, nil
}

func (s *exerciseService) List(ctx context.Context, subject, difficulty string, limit int) ([]response.ExerciseResponse, error) {
	filter, err := parseFilter(subject, difficulty)
	if err != nil {
		return nil, err
	}

	list, err := s.deps.Store.Repos().Exercise.List(ctx, filter, limit)
	if err != nil {
		s.log.Error("Failed to list exercises", zap.Error(err))
		return nil, apperr.Internal(err)
	}
	return response.ExercisesToResponse(list), nil
}

// Random picks uniformly among the exercises matching both filters.
func (s *exerciseService) Random(ctx context.Context, subject, difficulty string) (*response.ExerciseResponse, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(difficulty) == "" {
		return nil, apperr.Validation("subject and difficulty are required")
	}
	filter, err := parseFilter(subject, difficulty)
	if err != nil {
		return nil, err
	}

	repo := s.deps.Store.Repos().Exercise
	total, err := repo.Count(ctx, filter)
	if err != nil {
		s.log.Error("Failed to count exercises", zap.Error(err))
		return nil, apperr.Internal(err)
	}
	if total == 0 {
		return nil, apperr.NotFound("No exercises found for this subject and difficulty")
	}

	ex, err := repo.FindAtOffset(ctx, filter, s.deps.RandIntN(total))
	if err != nil {
		s.log.Error("Failed to pick exercise", zap.Error(err))
		return nil, apperr.Internal(err)
	}
	// rows deleted between count and pick
	if ex == nil {
		return nil, apperr.NotFound("No exercises found for this subject and difficulty")
	}

	resp := response.ExerciseToResponse(ex)
	return &resp, nil
}

func (s *exerciseService) Get(ctx context.Context, id uuid.UUID) (*response.ExerciseResponse, error) {
	ex, err := s.deps.Store.Repos().Exercise.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to get exercise", zap.Error(err), zap.String("exercise_id", id.String()))
		return nil, apperr.Internal(err)
	}
	if ex == nil {
		return nil, apperr.NotFound("Exercise not found")
	}

	resp := response.ExerciseToResponse(ex)
	return &resp, nil
}

func (s *exerciseService) Create(ctx context.Context, req *request.CreateExerciseRequest) (*response.ExerciseResponse, error) {
	filter, err := parseFilter(req.Subject, req.Difficulty)
	if err != nil {
		return nil, err
	}

	ex := &entity.Exercise{
		BaseSimple:    entity.BaseSimple{ID: uuid.New(), CreatedAt: s.deps.Now()},
		Question:      strings.TrimSpace(req.Question),
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   trimmed(req.Explanation),
		Difficulty:    filter.Difficulty,
		Subject:       filter.Subject,
	}
	if ex.Options == nil {
		ex.Options = []string{}
	}

	if err := s.deps.Store.Repos().Exercise.Create(ctx, ex); err != nil {
		s.log.Error("Failed to create exercise", zap.Error(err))
		return nil, apperr.Internal(err)
	}

	s.log.Info("Exercise created", zap.String("exercise_id", ex.ID.String()), zap.String("subject", string(ex.Subject)))
	resp := response.ExerciseToResponse(ex)
	return &resp, nil
}
